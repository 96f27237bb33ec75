// Package session persists attention runs to sqlite and renders
// post-hoc reports. Per-frame results are downsampled to one-second
// aggregates by a buffered recorder goroutine, so the detection loop
// never touches the database directly.
package session

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Info is one row of the sessions table.
type Info struct {
	ID        string
	Source    string
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is still open
	Frames    int
}

// Transition is one attention state change.
type Transition struct {
	At    time.Time
	State string
}

// Sample is a one-second aggregate of per-frame results. EAR fields
// cover only the frames where a face was visible.
type Sample struct {
	At              time.Time
	EARMean         float64
	EARMin          float64
	EARMax          float64
	VarianceMean    float64
	AttentiveFrames int
	FaceFrames      int
	TotalFrames     int
}

// Store wraps the sqlite session database.
type Store struct {
	db *sql.DB
}

// Open opens the session database at path, creating the schema when
// missing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("session: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new open session row.
func (s *Store) CreateSession(id, source string, startedAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, source, started_at_ms) VALUES (?, ?, ?)",
		id, source, startedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("session: create %s: %w", id, err)
	}
	return nil
}

// EndSession closes a session and records its total frame count.
func (s *Store) EndSession(id string, endedAt time.Time, frames int) error {
	_, err := s.db.Exec(
		"UPDATE sessions SET ended_at_ms = ?, frames = ? WHERE id = ?",
		endedAt.UnixMilli(), frames, id,
	)
	if err != nil {
		return fmt.Errorf("session: end %s: %w", id, err)
	}
	return nil
}

// AddTransition records one attention state change.
func (s *Store) AddTransition(sessionID string, at time.Time, state string) error {
	_, err := s.db.Exec(
		"INSERT INTO transitions (session_id, at_ms, state) VALUES (?, ?, ?)",
		sessionID, at.UnixMilli(), state,
	)
	if err != nil {
		return fmt.Errorf("session: add transition: %w", err)
	}
	return nil
}

// AddSample records one one-second aggregate.
func (s *Store) AddSample(sessionID string, smp Sample) error {
	_, err := s.db.Exec(
		`INSERT INTO samples
			(session_id, at_ms, ear_mean, ear_min, ear_max, variance_mean,
			 attentive_frames, face_frames, total_frames)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, smp.At.UnixMilli(), smp.EARMean, smp.EARMin, smp.EARMax,
		smp.VarianceMean, smp.AttentiveFrames, smp.FaceFrames, smp.TotalFrames,
	)
	if err != nil {
		return fmt.Errorf("session: add sample: %w", err)
	}
	return nil
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions() ([]Info, error) {
	rows, err := s.db.Query(
		"SELECT id, source, started_at_ms, ended_at_ms, frames FROM sessions ORDER BY started_at_ms DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	return infos, nil
}

// Session returns one session row. The wrapped error is
// sql.ErrNoRows when the id is unknown.
func (s *Store) Session(id string) (*Info, error) {
	row := s.db.QueryRow(
		"SELECT id, source, started_at_ms, ended_at_ms, frames FROM sessions WHERE id = ?",
		id,
	)
	info, err := scanInfo(row)
	if err != nil {
		return nil, fmt.Errorf("session: %s: %w", id, err)
	}
	return &info, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (Info, error) {
	var (
		info      Info
		startedMS int64
		endedMS   sql.NullInt64
	)
	if err := row.Scan(&info.ID, &info.Source, &startedMS, &endedMS, &info.Frames); err != nil {
		return Info{}, err
	}
	info.StartedAt = time.UnixMilli(startedMS)
	if endedMS.Valid {
		info.EndedAt = time.UnixMilli(endedMS.Int64)
	}
	return info, nil
}

// Transitions returns a session's state changes in time order.
func (s *Store) Transitions(sessionID string) ([]Transition, error) {
	rows, err := s.db.Query(
		"SELECT at_ms, state FROM transitions WHERE session_id = ? ORDER BY at_ms",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("session: transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var (
			atMS  int64
			state string
		)
		if err := rows.Scan(&atMS, &state); err != nil {
			return nil, fmt.Errorf("session: transitions: %w", err)
		}
		transitions = append(transitions, Transition{At: time.UnixMilli(atMS), State: state})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: transitions: %w", err)
	}
	return transitions, nil
}

// Samples returns a session's one-second aggregates in time order.
func (s *Store) Samples(sessionID string) ([]Sample, error) {
	rows, err := s.db.Query(
		`SELECT at_ms, ear_mean, ear_min, ear_max, variance_mean,
		        attentive_frames, face_frames, total_frames
		 FROM samples WHERE session_id = ? ORDER BY at_ms`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("session: samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			smp  Sample
			atMS int64
		)
		if err := rows.Scan(&atMS, &smp.EARMean, &smp.EARMin, &smp.EARMax,
			&smp.VarianceMean, &smp.AttentiveFrames, &smp.FaceFrames, &smp.TotalFrames); err != nil {
			return nil, fmt.Errorf("session: samples: %w", err)
		}
		smp.At = time.UnixMilli(atMS)
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: samples: %w", err)
	}
	return samples, nil
}
