package domain

import "strings"

// Customer is the directory's record for a rental customer. It is a
// read-through value owned by the external booking directory; this service
// caches reads and never writes it back.
type Customer struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// FullName joins the name parts for display and token claims.
func (c Customer) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}
