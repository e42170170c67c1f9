package domain

import "encoding/json"

// User is the signed-in identity.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Tokens is an access/refresh pair. The refresh token may be rotated on every refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Session is the authentication snapshot. A zero Session is anonymous.
// Empty strings mean absent; User is nil when absent.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// IsAuthenticated reports whether both tokens are present.
func (s Session) IsAuthenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Tokens returns the current pair.
func (s Session) Tokens() Tokens {
	return Tokens{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

// WithTokens returns a copy of s with the pair replaced and the user kept.
func (s Session) WithTokens(t Tokens) Session {
	s.AccessToken = t.AccessToken
	s.RefreshToken = t.RefreshToken
	return s
}

// snapshot is the stored JSON shape; absent values are null.
type snapshot struct {
	User         *User   `json:"user"`
	AccessToken  *string `json:"accessToken"`
	RefreshToken *string `json:"refreshToken"`
}

// MarshalJSON writes {user, accessToken, refreshToken} with null for absent fields.
func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{
		User:         s.User,
		AccessToken:  nullable(s.AccessToken),
		RefreshToken: nullable(s.RefreshToken),
	})
}

// UnmarshalJSON reads the stored shape. Wrong-typed fields are treated as absent
// instead of failing the whole snapshot.
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Session{}
	s.AccessToken = stringField(raw["accessToken"])
	s.RefreshToken = stringField(raw["refreshToken"])
	if u, ok := raw["user"]; ok {
		var user User
		if err := json.Unmarshal(u, &user); err == nil && user != (User{}) {
			s.User = &user
		}
	}
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}
