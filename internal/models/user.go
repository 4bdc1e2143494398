package models

// Roles known to the dev backend.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// User is an account the dev backend can log in. Password and OTP are never
// serialized.
type User struct {
	ID       string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"userType"`
	Password string `json:"-"`
	OTP      string `json:"-"`
}

// HasOTP reports whether login needs a second factor.
func (u *User) HasOTP() bool { return u.OTP != "" }
