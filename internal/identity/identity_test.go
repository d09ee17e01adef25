package identity

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_RoundTrip(t *testing.T) {
	v := NewVerifier("secret", "card-duel")
	tok, err := v.Issue("alice", time.Hour)
	require.NoError(t, err)

	sub, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestVerify_Rejects(t *testing.T) {
	v := NewVerifier("secret", "card-duel")

	expired, err := v.Issue("alice", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewVerifier("other", "card-duel").Issue("alice", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := NewVerifier("secret", "someone-else").Issue("alice", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "card-duel"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"garbage":      "not.a.token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestUserID_FromRequest(t *testing.T) {
	v := NewVerifier("secret", "card-duel")
	tok, err := v.Issue("bob", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/ws/plaza?token="+tok, nil)
	id, err := v.UserID(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", id)

	r = httptest.NewRequest("GET", "/ws/plaza", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	id, err = v.UserID(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", id)

	r = httptest.NewRequest("GET", "/ws/plaza", nil)
	id, err = v.UserID(r)
	require.NoError(t, err)
	assert.Empty(t, id, "no token means anonymous")

	r = httptest.NewRequest("GET", "/ws/plaza?token=junk", nil)
	_, err = v.UserID(r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
