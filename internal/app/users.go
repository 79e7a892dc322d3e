package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Register adds a new identity. A manager creates the team it names; an
// employee has to join a team some manager already created.
func (a *App) Register(ctx context.Context, username, password string, role Role, team string) (*Identity, error) {
	username, team = strings.TrimSpace(username), strings.TrimSpace(team)
	if username == "" || password == "" || team == "" {
		return nil, fmt.Errorf("%w: username, password and team are required", ErrInvalidInput)
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := Identity{Username: username, PasswordHash: string(hash), Role: role, Team: team}
	err = a.Store.UpdateUsers(ctx, func(users []Identity) ([]Identity, error) {
		if slices.ContainsFunc(users, func(u Identity) bool { return u.Username == username }) {
			return nil, ErrUsernameTaken
		}
		if role == RoleEmployee && !slices.Contains(teamsOf(users), team) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTeam, team)
		}
		return append(users, id), nil
	})
	if err != nil {
		return nil, err
	}
	a.logger().Info("user registered",
		zap.String("username", username),
		zap.String("role", string(role)),
		zap.String("team", team))
	return &id, nil
}

func (a *App) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	users, err := a.Store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	i := slices.IndexFunc(users, func(u Identity) bool { return u.Username == username })
	if i < 0 {
		return nil, ErrInvalidCredentials
	}
	err = bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(password))
	if err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			a.logger().Warn("stored password hash is unusable", zap.String("username", username), zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}
	return &users[i], nil
}

// Teams lists the teams owned by managers.
func (a *App) Teams(ctx context.Context) ([]string, error) {
	users, err := a.Store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return teamsOf(users), nil
}

func teamsOf(users []Identity) []string {
	teams := []string{}
	for _, u := range users {
		if u.Role == RoleManager && !slices.Contains(teams, u.Team) {
			teams = append(teams, u.Team)
		}
	}
	slices.Sort(teams)
	return teams
}
