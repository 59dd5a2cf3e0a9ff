package user

// Principal is the authenticated identity attached to a request by the
// account service. The engine trusts it and performs no authentication
// of its own.
type Principal struct {
	UserID string
	Email  string
}
