package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret NewCodec accepts (256 bits,
// matching the HS256 output size).
const MinSecretLength = 32

var (
	// ErrInvalidToken wraps every verification failure. Callers that only
	// care whether a token is usable check for this.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrKindMismatch = errors.New("jwtx: token kind mismatch")

	ErrMissingSecret = errors.New("jwtx: signing secret is not configured")
	ErrWeakSecret    = fmt.Errorf("jwtx: signing secret must be at least %d bytes", MinSecretLength)
)

// CodecOptions configures a Codec. Secret is required.
type CodecOptions struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Leeway tolerates clock skew on exp/nbf.
	Leeway time.Duration

	// Now overrides the clock; tests only.
	Now func() time.Time
}

// Codec signs and verifies HS256 access and refresh tokens.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
}

// NewCodec validates opts and returns a Codec. There is deliberately no
// default secret.
func NewCodec(opts CodecOptions) (*Codec, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if len(opts.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	c := &Codec{
		secret:     append([]byte(nil), opts.Secret...),
		issuer:     opts.Issuer,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		leeway:     opts.Leeway,
		now:        opts.Now,
	}
	if c.accessTTL <= 0 {
		c.accessTTL = DefaultAccessTokenTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = DefaultRefreshTokenTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// TTL returns the lifetime configured for kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Sign mints a token of the given kind and returns it with its expiry.
func (c *Codec) Sign(p Payload, kind Kind) (string, time.Time, error) {
	if !kind.Valid() {
		return "", time.Time{}, fmt.Errorf("jwtx: unknown token kind %q", kind)
	}
	if p.Subject == "" {
		return "", time.Time{}, errors.New("jwtx: subject is required")
	}

	now := c.now().UTC()
	claims := NewClaims(p, kind, c.issuer, c.TTL(kind), now)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm, issuer and lifetime and returns the
// decoded claims. Every failure wraps ErrInvalidToken.
func (c *Codec) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, invalid(mapParseError(err))
	}
	if !parsed.Valid {
		return nil, invalid(ErrMalformed)
	}

	if err := claims.ValidateIssuer(c.issuer); err != nil {
		return nil, invalid(err)
	}
	if !claims.Kind.Valid() {
		return nil, invalid(ErrMalformed)
	}
	if claims.Subject == "" {
		return nil, invalid(ErrMalformed)
	}

	return claims, nil
}

// VerifyKind is Verify plus a check that the token is of the expected kind.
func (c *Codec) VerifyKind(token string, kind Kind) (*Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return nil, err
	}
	if err := claims.ValidateKind(kind); err != nil {
		return nil, invalid(err)
	}
	return claims, nil
}

func invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, cause)
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
