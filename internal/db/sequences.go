package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sequence ties a friendly-ID counter table to the entity table it numbers.
type Sequence struct {
	Table  string // AUTOINCREMENT table tracked in sqlite_sequence
	Entity string
	Column string
	Prefix string // empty when the column is itself the integer key
}

// Drift is a sequence whose counter lags behind ids already in use, so the
// next insert would collide.
type Drift struct {
	Sequence
	MaxID   int
	Counter int
}

type execQuerier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Sequences lists the friendly-ID counters the schema maintains.
func Sequences() []Sequence {
	return []Sequence{
		{Table: "actor_seq", Entity: "actors", Column: "id", Prefix: "A-"},
		{Table: "task_seq", Entity: "tasks", Column: "id", Prefix: "T-"},
		{Table: "comment_seq", Entity: "comments", Column: "id", Prefix: "C-"},
		{Table: "event_log", Entity: "event_log", Column: "id"},
	}
}

// FindDrifts reports every sequence whose counter is below the highest id in
// its entity table. Rows imported with explicit ids bypass the counters.
func FindDrifts(q execQuerier, seqs []Sequence) ([]Drift, error) {
	var drifts []Drift
	for _, seq := range seqs {
		maxID, err := seq.maxID(q)
		if err != nil {
			return nil, fmt.Errorf("failed to compute max ID for %s: %w", seq.Entity, err)
		}
		counter, err := seq.counter(q)
		if err != nil {
			return nil, fmt.Errorf("failed to read sqlite_sequence for %s: %w", seq.Table, err)
		}
		if counter < maxID {
			drifts = append(drifts, Drift{Sequence: seq, MaxID: maxID, Counter: counter})
		}
	}
	return drifts, nil
}

// RepairDrifts advances lagging counters to the highest id in use and
// returns what it changed.
func RepairDrifts(q execQuerier, seqs []Sequence) ([]Drift, error) {
	drifts, err := FindDrifts(q, seqs)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		if err := d.set(q, d.MaxID); err != nil {
			return nil, fmt.Errorf("failed to update sqlite_sequence for %s: %w", d.Table, err)
		}
	}
	return drifts, nil
}

func (s Sequence) maxID(q execQuerier) (int, error) {
	var maxID int
	if s.Prefix == "" {
		query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", s.Column, s.Entity)
		err := q.QueryRow(query).Scan(&maxID)
		return maxID, err
	}

	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(CAST(SUBSTR(%s, ?) AS INTEGER)), 0) FROM %s WHERE %s LIKE ?",
		s.Column, s.Entity, s.Column,
	)
	err := q.QueryRow(query, len(s.Prefix)+1, s.Prefix+"%").Scan(&maxID)
	return maxID, err
}

func (s Sequence) counter(q execQuerier) (int, error) {
	var seq sql.NullInt64
	err := q.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = ?", s.Table).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(seq.Int64), nil
}

func (s Sequence) set(q execQuerier, value int) error {
	res, err := q.Exec("UPDATE sqlite_sequence SET seq = ? WHERE name = ?", value, s.Table)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	_, err = q.Exec("INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", s.Table, value)
	return err
}
