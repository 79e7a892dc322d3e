package app

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := NewTokenIssuer("test-secret-0123456789", time.Hour)
	token, exp, err := ti.Issue(&Identity{Username: "boss", Role: RoleManager, Team: "X"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := ti.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{Username: "boss", Role: RoleManager, Team: "X"}, id)
}

func TestTokenIssuer_RejectsBadTokens(t *testing.T) {
	ti := NewTokenIssuer("test-secret-0123456789", time.Hour)
	other := NewTokenIssuer("another-secret-0123456789", time.Hour)
	signedElsewhere, _, err := other.Issue(&Identity{Username: "boss", Role: RoleManager, Team: "X"})
	require.NoError(t, err)

	expired := NewTokenIssuer("test-secret-0123456789", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.Issue(&Identity{Username: "boss", Role: RoleManager, Team: "X"})
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             RoleManager,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "boss", Issuer: tokenIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret": signedElsewhere,
		"expired":      old,
		"alg none":     noneAlg,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ti.Parse(tok)
			assert.Error(t, err)
		})
	}
}

func TestNewTokenIssuer_DefaultTTL(t *testing.T) {
	ti := NewTokenIssuer("test-secret-0123456789", 0)
	assert.Equal(t, defaultTokenTTL, ti.ttl)
}

func TestTokenIssuer_State(t *testing.T) {
	ti := NewTokenIssuer("test-secret-0123456789", time.Hour)
	state, err := ti.IssueState("boss")
	require.NoError(t, err)

	manager, err := ti.ParseState(state)
	require.NoError(t, err)
	assert.Equal(t, "boss", manager)

	_, err = ti.Parse(state)
	assert.Error(t, err, "a state must not work as a session token")

	session, _, err := ti.Issue(&Identity{Username: "boss", Role: RoleManager, Team: "X"})
	require.NoError(t, err)
	_, err = ti.ParseState(session)
	assert.ErrorIs(t, err, ErrInvalidState)

	stale := NewTokenIssuer("test-secret-0123456789", time.Hour)
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := stale.IssueState("boss")
	require.NoError(t, err)

	other := NewTokenIssuer("another-secret-0123456789", time.Hour)
	foreign, err := other.IssueState("boss")
	require.NoError(t, err)

	for name, s := range map[string]string{
		"empty":        "",
		"forged":       "forged",
		"expired":      old,
		"wrong secret": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ti.ParseState(s)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}
