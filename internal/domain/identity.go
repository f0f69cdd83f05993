package domain

type IdentityID string

// Identity is a durable pseudonymous ("bubble") identity, decoupled from any
// single live connection. Secret is the reconnect token a client presents to
// get the same identity back; the identity registry is its only writer.
type Identity struct {
	ID     IdentityID `json:"id"`
	Secret string     `json:"-"`
	Name   string     `json:"name,omitempty"`
}
