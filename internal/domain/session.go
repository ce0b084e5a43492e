package domain

// TokenPair carries freshly issued credentials back to the client.
// ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Principal is the authenticated identity a verified access token carries.
// It reflects the customer as they were at issue time, not as they are now.
type Principal struct {
	CustomerID string
	Email      string
	Name       string
}
