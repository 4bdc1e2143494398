package credentials

import "time"

// Storage keys. They share one namespace with the dashboard's UI-state keys.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyTokenExpiry  = "tokenExpiry"
	KeyUserID       = "userId"
	KeyUserType     = "userType"
)

// DefaultTTL is the access token lifetime used when none is configured.
const DefaultTTL = 6 * time.Hour

// Bundle is the access token, refresh token and expiry treated as one unit.
// ExpiresAt is milliseconds since the Unix epoch; zero means no expiry was stored.
type Bundle struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"tokenExpiry"`
}

// Expiry returns ExpiresAt as a time, or the zero time when unset.
func (b Bundle) Expiry() time.Time {
	if b.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(b.ExpiresAt)
}

// State is the conceptual lifecycle position of the stored bundle.
type State int

const (
	StateAbsent State = iota
	StateValid
	// StateExpired means the clock has passed the expiry but nothing has swept it yet.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	}
	return "absent"
}
