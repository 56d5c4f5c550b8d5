// Package identity models the current shopper context used to partition
// persisted cart state. An identity is either the shared guest or an
// authenticated principal; it is never inspected for business rules.
package identity

const guestCartKey = "cart_guest"

// Identity selects the storage partition for a shopper's cart.
type Identity struct {
	ID    string
	Email string
}

// Guest returns the anonymous shopper identity.
func Guest() Identity {
	return Identity{}
}

// IsAuthenticated reports whether the identity belongs to a signed-in
// principal rather than the shared guest partition.
func (id Identity) IsAuthenticated() bool {
	return id.ID != ""
}

// CartKey derives the storage key for this identity's cart partition.
// Authenticated principals get a key scoped to their email; everyone else
// shares the guest partition. Two different identities never map to the
// same key unless they share an email.
func (id Identity) CartKey() string {
	if id.Email != "" {
		return "cart_" + id.Email
	}
	return guestCartKey
}

// JournalKey is the stable principal identifier used by the checkout order
// journal. Empty for guests, which disables journal writes.
func (id Identity) JournalKey() string {
	return id.ID
}
