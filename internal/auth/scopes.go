package auth

const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
)

// DefaultScopes are requested when auth.scopes is empty.
var DefaultScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
}

// withOpenID returns scopes with openid guaranteed to be present.
func withOpenID(scopes []string) []string {
	if len(scopes) == 0 {
		return DefaultScopes
	}
	for _, s := range scopes {
		if s == ScopeOpenID {
			return scopes
		}
	}
	return append([]string{ScopeOpenID}, scopes...)
}
