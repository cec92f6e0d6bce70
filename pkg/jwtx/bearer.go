package jwtx

import (
	"errors"
	"strings"
)

const bearerPrefix = "Bearer "

// ErrMissingOrMalformedHeader is returned by ExtractBearer when the header
// is absent or does not carry a bearer token.
var ErrMissingOrMalformedHeader = errors.New("jwtx: missing or malformed authorization header")

// ExtractBearer returns the token following the case-sensitive "Bearer "
// prefix of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingOrMalformedHeader
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrMissingOrMalformedHeader
	}
	return token, nil
}
