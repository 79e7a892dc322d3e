package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_ManagerCreatesTeamEmployeeJoins(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()

	_, err := a.Register(ctx, "alice", "pw", RoleEmployee, "X")
	assert.ErrorIs(t, err, ErrUnknownTeam)

	mgr, err := a.Register(ctx, "boss", "pw", RoleManager, "X")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", mgr.PasswordHash)

	_, err = a.Register(ctx, "alice", "pw", RoleEmployee, "X")
	require.NoError(t, err)

	teams, err := a.Teams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, teams)
}

func TestRegister_UsernameMustBeUnique(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	_, err := a.Register(ctx, "boss", "pw", RoleManager, "X")
	require.NoError(t, err)

	_, err = a.Register(ctx, "boss", "other", RoleManager, "Y")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	users, err := a.Store.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegister_Validation(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	_, err := a.Register(ctx, " ", "pw", RoleManager, "X")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = a.Register(ctx, "boss", "", RoleManager, "X")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = a.Register(ctx, "boss", "pw", "Admin", "X")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthenticate(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	_, err := a.Register(ctx, "boss", "s3cret", RoleManager, "X")
	require.NoError(t, err)
	seedUsers(t, a, Identity{Username: "legacy", PasswordHash: "plaintext", Role: RoleEmployee, Team: "X"})

	id, err := a.Authenticate(ctx, "boss", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, id.Role)
	assert.Equal(t, "X", id.Team)

	_, err = a.Authenticate(ctx, "boss", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, "legacy", "plaintext")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
