package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Publisher mirrors approved records elsewhere. Publish runs right after
// records are approved; Unpublish runs after an approved record is withdrawn
// or replaced by a new declaration.
type Publisher interface {
	Publish(ctx context.Context, records []AvailabilityRecord) error
	Unpublish(ctx context.Context, records []AvailabilityRecord) error
}

// publish and unpublish run after the store commit. Failures are logged and
// never undo the change.
func (a *App) publish(ctx context.Context, records []AvailabilityRecord) {
	if a.Publisher == nil || len(records) == 0 {
		return
	}
	if err := a.Publisher.Publish(ctx, records); err != nil {
		a.logger().Warn("failed to publish approved records", zap.Error(err))
	}
}

func (a *App) unpublish(ctx context.Context, records []AvailabilityRecord) {
	if a.Publisher == nil || len(records) == 0 {
		return
	}
	if err := a.Publisher.Unpublish(ctx, records); err != nil {
		a.logger().Warn("failed to unpublish records", zap.Error(err))
	}
}

type PendingDay struct {
	Date    Date                 `json:"date"`
	Records []AvailabilityRecord `json:"records"`
}

// ListPending returns the team's pending records dated from on, grouped by
// date in ascending order.
func (a *App) ListPending(ctx context.Context, team string, from Date) ([]PendingDay, error) {
	records, err := a.Query(ctx, Filter{Team: team, From: from, States: []ApprovalState{StatePending}})
	if err != nil {
		return nil, err
	}
	out := []PendingDay{}
	for _, r := range records {
		if n := len(out); n > 0 && out[n-1].Date == r.Date {
			out[n-1].Records = append(out[n-1].Records, r)
			continue
		}
		out = append(out, PendingDay{Date: r.Date, Records: []AvailabilityRecord{r}})
	}
	return out, nil
}

// Resolve moves each identified record to decision and bumps its unread
// counter by one. Records are handled independently: missing keys and
// records already holding the opposite decision are reported in the returned
// error while the rest are applied. Re-resolving to the same decision keeps
// the state and still counts as a new notification.
func (a *App) Resolve(ctx context.Context, keys []RecordKey, decision ApprovalState) ([]AvailabilityRecord, error) {
	if decision != StateApproved && decision != StateRejected {
		return nil, fmt.Errorf("%w: decision must be %s or %s", ErrInvalidInput, StateApproved, StateRejected)
	}

	var (
		resolved []AvailabilityRecord
		errs     []error
	)
	err := a.Store.UpdateAvailability(ctx, func(records []AvailabilityRecord) ([]AvailabilityRecord, error) {
		resolved, errs = resolved[:0], errs[:0]
		index := make(map[RecordKey]int, len(records))
		for i, r := range records {
			index[r.Key()] = i
		}
		for _, key := range keys {
			i, ok := index[key]
			if !ok {
				errs = append(errs, &NotFoundError{Key: key})
				continue
			}
			r := &records[i]
			if r.State != StatePending && r.State != decision {
				errs = append(errs, &TransitionError{Key: key, From: r.State, To: decision})
				continue
			}
			r.State = decision
			r.Unread++
			resolved = append(resolved, *r)
		}
		return records, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save approvals: %w", err)
	}

	a.logger().Info("approvals resolved",
		zap.String("decision", string(decision)),
		zap.Int("requested", len(keys)),
		zap.Int("resolved", len(resolved)),
		zap.Int("failed", len(errs)))

	if decision == StateApproved {
		a.publish(ctx, resolved)
	}
	return resolved, errors.Join(errs...)
}

type Notification struct {
	Date  Date          `json:"date"`
	State ApprovalState `json:"approval_status"`
}

// DrainNotifications returns the owner's unread decisions dated today or
// later and marks them read in the same write. A second call returns nothing
// until another decision is made.
func (a *App) DrainNotifications(ctx context.Context, owner string) ([]Notification, error) {
	today := a.today()
	var out []Notification
	err := a.Store.UpdateAvailability(ctx, func(records []AvailabilityRecord) ([]AvailabilityRecord, error) {
		out = out[:0]
		for i := range records {
			r := &records[i]
			if r.Owner != owner || r.Unread == 0 || r.Date.Before(today) {
				continue
			}
			out = append(out, Notification{Date: r.Date, State: r.State})
			r.Unread = 0
		}
		if len(out) == 0 {
			return nil, errUnchanged
		}
		return records, nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, fmt.Errorf("failed to save notifications: %w", err)
	}
	slices.SortFunc(out, func(x, y Notification) int {
		return strings.Compare(string(x.Date), string(y.Date))
	})
	if len(out) > 0 {
		a.logger().Debug("notifications delivered", zap.String("owner", owner), zap.Int("count", len(out)))
	}
	return out, nil
}
