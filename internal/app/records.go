package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// MaxDeclarationDays bounds the number of days one declaration may cover.
const MaxDeclarationDays = 366

type Declaration struct {
	Owner string
	Kind  StatusKind
	Start Date
	End   Date
	Team  string
}

// DayOutcome is the result of a declaration for a single day. Exactly one of
// Created, Replaced or Err is set.
type DayOutcome struct {
	Date     Date                `json:"date"`
	Record   *AvailabilityRecord `json:"record,omitempty"`
	Created  bool                `json:"created,omitempty"`
	Replaced bool                `json:"replaced,omitempty"`
	Err      error               `json:"-"`

	// previous is the record a replacement overwrote.
	previous *AvailabilityRecord
}

func (o DayOutcome) Applied() bool { return o.Err == nil }

// Declare expands [Start, End] into one record per day. Each day is
// independent: a day that duplicates an existing record is reported and
// skipped, a day already covered with a different status is replaced and
// goes back to Pending, any other day gets a new Pending record.
func (a *App) Declare(ctx context.Context, d Declaration) ([]DayOutcome, error) {
	if strings.TrimSpace(d.Owner) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if _, err := ParseStatusKind(string(d.Kind)); err != nil {
		return nil, err
	}
	start, err := ParseDate(string(d.Start))
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(string(d.End))
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, &RangeError{Start: start, End: end}
	}
	if end.After(start.AddDays(MaxDeclarationDays - 1)) {
		return nil, fmt.Errorf("%w: a declaration covers at most %d days", ErrInvalidInput, MaxDeclarationDays)
	}

	var outcomes []DayOutcome
	err = a.Store.UpdateAvailability(ctx, func(records []AvailabilityRecord) ([]AvailabilityRecord, error) {
		outcomes = outcomes[:0]
		for day := start; !day.After(end); day = day.AddDays(1) {
			var out DayOutcome
			records, out = upsert(records, AvailabilityRecord{
				Owner: d.Owner,
				Kind:  d.Kind,
				Date:  day,
				State: StatePending,
				Team:  d.Team,
			})
			outcomes = append(outcomes, out)
		}
		return records, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save availability: %w", err)
	}

	applied := 0
	var stale []AvailabilityRecord
	for _, o := range outcomes {
		if o.Applied() {
			applied++
		}
		if o.previous != nil && o.previous.State == StateApproved {
			stale = append(stale, *o.previous)
		}
	}
	a.logger().Info("availability declared",
		zap.String("owner", d.Owner),
		zap.String("status", string(d.Kind)),
		zap.Stringer("start", start),
		zap.Stringer("end", end),
		zap.Int("days", len(outcomes)),
		zap.Int("applied", applied))
	a.unpublish(ctx, stale)
	return outcomes, nil
}

// upsert applies rec keyed by (owner, date).
func upsert(records []AvailabilityRecord, rec AvailabilityRecord) ([]AvailabilityRecord, DayOutcome) {
	out := DayOutcome{Date: rec.Date}
	i := slices.IndexFunc(records, func(r AvailabilityRecord) bool {
		return r.Owner == rec.Owner && r.Date == rec.Date
	})
	switch {
	case i < 0:
		records = append(records, rec)
		out.Created = true
	case records[i].Kind == rec.Kind:
		out.Err = &DuplicateError{Owner: rec.Owner, Kind: rec.Kind, Date: rec.Date}
		return records, out
	default:
		prev := records[i]
		out.previous = &prev
		records[i] = rec
		out.Replaced = true
	}
	out.Record = &rec
	return records, out
}

// Withdraw removes the owner's record for date. An approved record is also
// taken off the publisher.
func (a *App) Withdraw(ctx context.Context, owner string, date Date) error {
	key := RecordKey{Owner: owner, Date: date}
	var removed AvailabilityRecord
	err := a.Store.UpdateAvailability(ctx, func(records []AvailabilityRecord) ([]AvailabilityRecord, error) {
		i := slices.IndexFunc(records, func(r AvailabilityRecord) bool { return r.Key() == key })
		if i < 0 {
			return nil, &NotFoundError{Key: key}
		}
		removed = records[i]
		return slices.Delete(records, i, i+1), nil
	})
	if err != nil {
		return err
	}
	a.logger().Info("availability withdrawn", zap.String("owner", owner), zap.Stringer("date", date))
	if removed.State == StateApproved {
		a.unpublish(ctx, []AvailabilityRecord{removed})
	}
	return nil
}

// Filter selects records; zero-valued fields match everything. From and To
// are inclusive.
type Filter struct {
	Owner  string
	Team   string
	From   Date
	To     Date
	States []ApprovalState
	Kinds  []StatusKind
}

func (f Filter) Match(r AvailabilityRecord) bool {
	if f.Owner != "" && r.Owner != f.Owner {
		return false
	}
	if f.Team != "" && r.Team != f.Team {
		return false
	}
	if f.From != "" && r.Date.Before(f.From) {
		return false
	}
	if f.To != "" && r.Date.After(f.To) {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, r.State) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, r.Kind) {
		return false
	}
	return true
}

// Query returns matching records ordered by date, then owner.
func (a *App) Query(ctx context.Context, f Filter) ([]AvailabilityRecord, error) {
	records, err := a.Store.Availability(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}
	out := make([]AvailabilityRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

// Upcoming lists the owner's records from today on.
func (a *App) Upcoming(ctx context.Context, owner string) ([]AvailabilityRecord, error) {
	return a.Query(ctx, Filter{Owner: owner, From: a.today()})
}

func sortRecords(records []AvailabilityRecord) {
	slices.SortFunc(records, func(x, y AvailabilityRecord) int {
		if c := strings.Compare(string(x.Date), string(y.Date)); c != 0 {
			return c
		}
		return strings.Compare(x.Owner, y.Owner)
	})
}
