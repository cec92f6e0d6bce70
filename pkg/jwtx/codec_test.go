package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/certvault/certauth/pkg/jwtx"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCodec(t *testing.T, clock *fakeClock) *jwtx.Codec {
	t.Helper()
	c, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret:     testSecret,
		Issuer:     "certauth",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return c
}

func TestNewCodecRejectsBadSecrets(t *testing.T) {
	_, err := jwtx.NewCodec(jwtx.CodecOptions{})
	require.ErrorIs(t, err, jwtx.ErrMissingSecret)

	_, err = jwtx.NewCodec(jwtx.CodecOptions{Secret: []byte("short")})
	require.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestCodecRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newCodec(t, clock)

	p := jwtx.Payload{Subject: "01HZX", Email: "admin@example.com", Role: "admin"}
	token, exp, err := c.Sign(p, jwtx.KindAccess)
	require.NoError(t, err)
	require.Equal(t, clock.t.Add(15*time.Minute), exp)

	claims, err := c.VerifyKind(token, jwtx.KindAccess)
	require.NoError(t, err)
	require.Equal(t, p, claims.Payload())
	require.Equal(t, "certauth", claims.Issuer)
	require.Equal(t, jwtx.KindAccess, claims.Kind)
}

func TestCodecExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newCodec(t, clock)

	token, _, err := c.Sign(jwtx.Payload{Subject: "u1"}, jwtx.KindAccess)
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	_, err = c.Verify(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = c.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCodecLifetimeChecks(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("leeway tolerates clock skew", func(t *testing.T) {
		clock := &fakeClock{t: start}
		c, err := jwtx.NewCodec(jwtx.CodecOptions{
			Secret:    testSecret,
			Issuer:    "certauth",
			AccessTTL: time.Minute,
			Leeway:    30 * time.Second,
			Now:       clock.Now,
		})
		require.NoError(t, err)

		token, _, err := c.Sign(jwtx.Payload{Subject: "u1"}, jwtx.KindAccess)
		require.NoError(t, err)

		clock.Advance(time.Minute + 10*time.Second)
		_, err = c.Verify(token)
		require.NoError(t, err)

		clock.Advance(time.Minute)
		_, err = c.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("token from the future", func(t *testing.T) {
		issuer := newCodec(t, &fakeClock{t: start.Add(10 * time.Minute)})
		token, _, err := issuer.Sign(jwtx.Payload{Subject: "u1"}, jwtx.KindAccess)
		require.NoError(t, err)

		_, err = newCodec(t, &fakeClock{t: start}).Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})

	t.Run("missing exp", func(t *testing.T) {
		claims := jwtx.NewClaims(jwtx.Payload{Subject: "u1"}, jwtx.KindAccess, "certauth", time.Hour, start)
		claims.ExpiresAt = nil
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)

		_, err = newCodec(t, &fakeClock{t: start}).Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	})
}

func TestCodecRefreshOutlivesAccess(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newCodec(t, clock)

	refresh, exp, err := c.Sign(jwtx.Payload{Subject: "u1", Email: "x@example.com"}, jwtx.KindRefresh)
	require.NoError(t, err)
	require.Equal(t, clock.t.Add(24*time.Hour), exp)

	clock.Advance(23 * time.Hour)
	claims, err := c.VerifyKind(refresh, jwtx.KindRefresh)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Empty(t, claims.Email)
}

func TestCodecKindMismatch(t *testing.T) {
	c := newCodec(t, &fakeClock{t: time.Now()})

	refresh, _, err := c.Sign(jwtx.Payload{Subject: "u1"}, jwtx.KindRefresh)
	require.NoError(t, err)
	_, err = c.VerifyKind(refresh, jwtx.KindAccess)
	require.ErrorIs(t, err, jwtx.ErrKindMismatch)

	access, _, err := c.Sign(jwtx.Payload{Subject: "u1", Role: "investor"}, jwtx.KindAccess)
	require.NoError(t, err)
	_, err = c.VerifyKind(access, jwtx.KindRefresh)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestCodecRejectsForeignSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newCodec(t, clock)

	other, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret: []byte("ffffffffffffffffffffffffffffffff"),
		Issuer: "certauth",
		Now:    clock.Now,
	})
	require.NoError(t, err)

	token, _, err := other.Sign(jwtx.Payload{Subject: "u1", Role: "admin"}, jwtx.KindAccess)
	require.NoError(t, err)

	_, err = c.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestCodecRejectsTampering(t *testing.T) {
	c := newCodec(t, &fakeClock{t: time.Now()})

	token, _, err := c.Sign(jwtx.Payload{Subject: "u1", Role: "investor"}, jwtx.KindAccess)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = c.Verify(forged)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)

	_, err = c.Verify("not-a-jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestCodecRejectsAlgNone(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newCodec(t, clock)

	claims := jwtx.NewClaims(jwtx.Payload{Subject: "u1", Role: "admin"}, jwtx.KindAccess, "certauth", time.Hour, clock.t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(unsigned)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestCodecRejectsWrongIssuer(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newCodec(t, clock)

	other, err := jwtx.NewCodec(jwtx.CodecOptions{Secret: testSecret, Issuer: "elsewhere", Now: clock.Now})
	require.NoError(t, err)

	token, _, err := other.Sign(jwtx.Payload{Subject: "u1"}, jwtx.KindAccess)
	require.NoError(t, err)

	_, err = c.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"empty header", "", "", true},
		{"missing scheme", "abc.def.ghi", "", true},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", true},
		{"lowercase scheme", "bearer abc", "", true},
		{"empty token", "Bearer ", "", true},
		{"whitespace token", "Bearer    ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := jwtx.ExtractBearer(tt.header)
			if tt.wantErr {
				require.ErrorIs(t, err, jwtx.ErrMissingOrMalformedHeader)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
