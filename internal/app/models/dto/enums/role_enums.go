package enums

// RoleType defines the role carried in a bearer token
type RoleType string

const (
	RoleBursar  RoleType = "BURSAR"
	RoleAdmin   RoleType = "ADMIN"
	RoleStudent RoleType = "STUDENT"
)

// LedgerWriters may change obligations and payments
var LedgerWriters = []RoleType{RoleBursar, RoleAdmin}
