package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL,
	team       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS availability (
	name            TEXT NOT NULL,
	status          TEXT NOT NULL,
	date            DATE NOT NULL,
	approval_status TEXT NOT NULL,
	team            TEXT NOT NULL,
	msg_count       INTEGER NOT NULL DEFAULT 0 CHECK (msg_count >= 0),
	PRIMARY KEY (name, date)
);
CREATE INDEX IF NOT EXISTS availability_team_date ON availability (team, date);
`

// PostgresStore keeps both tables in PostgreSQL. Updates run in a single
// transaction that takes an exclusive table lock before reading, which
// serializes writers across processes as well as goroutines.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{DB: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.DB.Close()
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) Users(ctx context.Context) ([]Identity, error) {
	return listUsers(ctx, s.DB)
}

func (s *PostgresStore) UpdateUsers(ctx context.Context, fn func([]Identity) ([]Identity, error)) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE users IN EXCLUSIVE MODE`); err != nil {
		return err
	}
	users, err := listUsers(ctx, tx)
	if err != nil {
		return err
	}
	next, err := fn(users)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"users"},
		[]string{"username", "password", "role", "team"},
		pgx.CopyFromSlice(len(next), func(i int) ([]any, error) {
			u := next[i]
			return []any{u.Username, u.PasswordHash, string(u.Role), u.Team}, nil
		}))
	if err != nil {
		return fmt.Errorf("failed to write users: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Availability(ctx context.Context) ([]AvailabilityRecord, error) {
	return listAvailability(ctx, s.DB)
}

func (s *PostgresStore) UpdateAvailability(ctx context.Context, fn func([]AvailabilityRecord) ([]AvailabilityRecord, error)) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE availability IN EXCLUSIVE MODE`); err != nil {
		return err
	}
	records, err := listAvailability(ctx, tx)
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM availability`); err != nil {
		return err
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"availability"},
		[]string{"name", "status", "date", "approval_status", "team", "msg_count"},
		pgx.CopyFromSlice(len(next), func(i int) ([]any, error) {
			r := next[i]
			return []any{r.Owner, string(r.Kind), r.Date.Time(), string(r.State), r.Team, int32(r.Unread)}, nil
		}))
	if err != nil {
		return fmt.Errorf("failed to write availability: %w", err)
	}
	return tx.Commit(ctx)
}

func listUsers(ctx context.Context, q querier) ([]Identity, error) {
	rows, err := q.Query(ctx, `SELECT username,password,role,team FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		var u Identity
		var role string
		if err := rows.Scan(&u.Username, &u.PasswordHash, &role, &u.Team); err != nil {
			return nil, err
		}
		if u.Role, err = ParseRole(role); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func listAvailability(ctx context.Context, q querier) ([]AvailabilityRecord, error) {
	rows, err := q.Query(ctx, `SELECT name,status,date,approval_status,team,msg_count
	      FROM availability ORDER BY date, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailabilityRecord
	for rows.Next() {
		var r AvailabilityRecord
		var kind, state string
		var date time.Time
		var unread int32
		if err := rows.Scan(&r.Owner, &kind, &date, &state, &r.Team, &unread); err != nil {
			return nil, err
		}
		if r.Kind, err = ParseStatusKind(kind); err != nil {
			return nil, err
		}
		if r.State, err = ParseApprovalState(state); err != nil {
			return nil, err
		}
		r.Date = DateOf(date)
		r.Unread = int(unread)
		out = append(out, r)
	}
	return out, rows.Err()
}
