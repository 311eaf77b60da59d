package domain

import "time"

// Credential is the access/refresh token pair plus expiry. It is replaced
// wholesale on refresh, never mutated field by field, so readers can never
// observe a torn access/refresh pair.
type Credential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the access token is expired at now, treating
// anything within margin of the deadline as already expired to avoid races
// with in-flight requests.
func (c Credential) Expired(now time.Time, margin time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(margin).Before(c.ExpiresAt)
}

func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
