// Package token decodes opaque access tokens into identity assertions.
package token

import (
	"encoding/base64"
	"encoding/json"
)

// AccessAssertion identifies the session and user a token was issued for.
type AccessAssertion struct {
	TokenID string `json:"id"`
	UserID  string `json:"userId"`
}

// Marshal returns the wire form of an assertion: base64(JSON).
func Marshal(a *AccessAssertion) string {
	buf, err := json.Marshal(a)
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Unmarshal parses the wire form of an access token.
// Returns nil if the token is malformed in any way.
// A nil result is a routine outcome, not an internal error.
func Unmarshal(s string) *AccessAssertion {
	if s == "" {
		return nil
	}
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	var a AccessAssertion
	if err := json.Unmarshal(buf, &a); err != nil {
		return nil
	}
	if a.TokenID == "" || a.UserID == "" {
		return nil
	}
	return &a
}
