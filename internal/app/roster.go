package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

type Roster struct {
	Team        string     `json:"team"`
	Date        Date       `json:"date"`
	Onsite      []Identity `json:"working_onsite"`
	Remote      []Identity `json:"working_remote"`
	Unavailable []Identity `json:"unavailable"`
}

// RosterFor places every employee of team in exactly one bucket for date.
// Only approved records count: an approved WFH day means remote, an approved
// Leave or Floating day means unavailable, anything else means onsite.
func (a *App) RosterFor(ctx context.Context, team string, date Date) (*Roster, error) {
	users, err := a.Store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	approved, err := a.Query(ctx, Filter{
		Team:   team,
		From:   date,
		To:     date,
		States: []ApprovalState{StateApproved},
	})
	if err != nil {
		return nil, err
	}

	kinds := make(map[string][]StatusKind, len(approved))
	for _, r := range approved {
		kinds[r.Owner] = append(kinds[r.Owner], r.Kind)
	}

	ro := &Roster{
		Team:        team,
		Date:        date,
		Onsite:      []Identity{},
		Remote:      []Identity{},
		Unavailable: []Identity{},
	}
	for _, u := range users {
		if u.Team != team || u.Role != RoleEmployee {
			continue
		}
		k := kinds[u.Username]
		switch {
		case slices.Contains(k, StatusWorkFromHome):
			ro.Remote = append(ro.Remote, u)
		case slices.Contains(k, StatusLeave), slices.Contains(k, StatusFloating):
			ro.Unavailable = append(ro.Unavailable, u)
		default:
			ro.Onsite = append(ro.Onsite, u)
		}
	}
	for _, bucket := range [][]Identity{ro.Onsite, ro.Remote, ro.Unavailable} {
		slices.SortFunc(bucket, func(x, y Identity) int { return strings.Compare(x.Username, y.Username) })
	}
	return ro, nil
}
