package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	UsersFile        = "users.csv"
	AvailabilityFile = "availability.csv"
	LockFile         = ".lock"
	tmpSuffix        = ".tmp"
	filePermissions  = 0644
	lockRetryDelay   = 10 * time.Millisecond
)

var (
	usersHeader        = []string{"username", "password", "role", "team"}
	availabilityHeader = []string{"Name", "Status", "Date", "Approval Status", "Team", "MSGCount"}
)

// CSVStore persists both tables as CSV files in a data directory.
// A missing file reads as an empty table.
//
// Updates hold mu and an exclusive flock on <dir>/.lock from read to rename,
// so handles in other processes (the useradd command next to a running
// server) serialize with this one. Reads take neither the file lock nor a
// write slot: tables are only ever replaced by rename.
type CSVStore struct {
	dir  string
	mu   sync.RWMutex
	lock *flock.Flock
}

func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &CSVStore{dir: dir, lock: flock.New(filepath.Join(dir, LockFile))}, nil
}

// exclusive runs fn holding both the in-process and the directory lock.
func (s *CSVStore) exclusive(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock data directory %s", s.dir)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *CSVStore) Users(_ context.Context) ([]Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readUsers()
}

func (s *CSVStore) UpdateUsers(ctx context.Context, fn func([]Identity) ([]Identity, error)) error {
	return s.exclusive(ctx, func() error {
		users, err := s.readUsers()
		if err != nil {
			return err
		}
		next, err := fn(users)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(next))
		for _, u := range next {
			rows = append(rows, []string{u.Username, u.PasswordHash, string(u.Role), u.Team})
		}
		return s.writeTable(UsersFile, usersHeader, rows)
	})
}

func (s *CSVStore) Availability(_ context.Context) ([]AvailabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readAvailability()
}

func (s *CSVStore) UpdateAvailability(ctx context.Context, fn func([]AvailabilityRecord) ([]AvailabilityRecord, error)) error {
	return s.exclusive(ctx, func() error {
		records, err := s.readAvailability()
		if err != nil {
			return err
		}
		next, err := fn(records)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(next))
		for _, r := range next {
			rows = append(rows, []string{
				r.Owner, string(r.Kind), string(r.Date), string(r.State), r.Team, strconv.Itoa(r.Unread),
			})
		}
		return s.writeTable(AvailabilityFile, availabilityHeader, rows)
	})
}

func (s *CSVStore) Close() error { return s.lock.Close() }

func (s *CSVStore) readUsers() ([]Identity, error) {
	rows, err := s.readTable(UsersFile, usersHeader)
	if err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(rows))
	for i, row := range rows {
		role, err := ParseRole(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", UsersFile, i+2, err)
		}
		out = append(out, Identity{Username: row[0], PasswordHash: row[1], Role: role, Team: row[3]})
	}
	return out, nil
}

func (s *CSVStore) readAvailability() ([]AvailabilityRecord, error) {
	rows, err := s.readTable(AvailabilityFile, availabilityHeader)
	if err != nil {
		return nil, err
	}
	out := make([]AvailabilityRecord, 0, len(rows))
	for i, row := range rows {
		r, err := availabilityFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", AvailabilityFile, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func availabilityFromRow(row []string) (AvailabilityRecord, error) {
	kind, err := ParseStatusKind(row[1])
	if err != nil {
		return AvailabilityRecord{}, err
	}
	date, err := ParseDate(row[2])
	if err != nil {
		return AvailabilityRecord{}, err
	}
	state, err := ParseApprovalState(row[3])
	if err != nil {
		return AvailabilityRecord{}, err
	}
	unread, err := strconv.Atoi(row[5])
	if err != nil || unread < 0 {
		return AvailabilityRecord{}, fmt.Errorf("%w: invalid MSGCount %q", ErrInvalidInput, row[5])
	}
	return AvailabilityRecord{
		Owner:  row[0],
		Kind:   kind,
		Date:   date,
		State:  state,
		Team:   row[4],
		Unread: unread,
	}, nil
}

// readTable returns the data rows of a CSV file, checking its header.
func (s *CSVStore) readTable(name string, header []string) ([][]string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	got, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", name, err)
	}
	for i := range header {
		if got[i] != header[i] {
			return nil, fmt.Errorf("unexpected %s header: %v", name, got)
		}
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return rows, nil
}

// writeTable writes to a temp file first and renames it over the table, so a
// failed write never leaves a partially written table behind.
func (s *CSVStore) writeTable(name string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, buf.Bytes(), filePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
