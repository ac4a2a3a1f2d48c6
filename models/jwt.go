package models

// FramepressJWT is the request token accepted by the /convert and
// /credentials endpoints.
type FramepressJWT struct {
	Issuer    string `json:"iss"` // optional
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`

	// Sources lists the URL schemes this token may convert from. Empty
	// means http/https only.
	Sources []string `json:"sources,omitempty"`
}

// AllowsScheme reports whether the token grants fetching from the given
// URL scheme.
func (t *FramepressJWT) AllowsScheme(scheme string) bool {
	if scheme == "http" || scheme == "https" {
		return true
	}
	for _, s := range t.Sources {
		if s == scheme {
			return true
		}
	}
	return false
}
