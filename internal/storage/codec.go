package storage

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/shopkit/checkout/internal/cart"
)

// EncodeLines serializes cart lines as a JSON array of line objects, the
// wire shape shared by every backend and the order journal.
func EncodeLines(items []cart.Line) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, ln := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(ln.ID)
		e.FieldStart("title")
		e.Str(ln.Title)
		e.FieldStart("image")
		e.Str(ln.Image)
		e.FieldStart("price")
		e.Float64(ln.Price.InexactFloat64())
		e.FieldStart("quantity")
		e.Int(ln.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// DecodeLines parses a JSON array of line objects. Unknown fields are
// skipped; a persisted quantity below 1 is normalized to 1 so malformed
// records never surface an invalid quantity.
func DecodeLines(data []byte) ([]cart.Line, error) {
	d := jx.DecodeBytes(data)

	var items []cart.Line
	if err := d.Arr(func(d *jx.Decoder) error {
		ln := cart.Line{Quantity: 1}
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				ln.ID, err = d.Str()
			case "title":
				ln.Title, err = d.Str()
			case "image":
				ln.Image, err = d.Str()
			case "price":
				var f float64
				f, err = d.Float64()
				ln.Price = decimal.NewFromFloat(f)
			case "quantity":
				ln.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if ln.Quantity < 1 {
			ln.Quantity = 1
		}
		items = append(items, ln)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart lines")
	}
	return items, nil
}
