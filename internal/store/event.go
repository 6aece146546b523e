package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// MaxEvents is the number of session events kept.
const MaxEvents = 500

// Event is one entry of the session history.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository appends to and reads the session history.
type EventRepository struct {
	db  *sql.DB
	max int
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db, max: MaxEvents}
}

// Record appends an event and drops the oldest ones beyond MaxEvents.
func (r *EventRepository) Record(kind, detail string) error {
	_, err := r.db.Exec(
		`INSERT INTO session_events (id, kind, detail, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), kind, detail, time.Now(),
	)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`DELETE FROM session_events WHERE seq <= (
			SELECT seq FROM session_events ORDER BY seq DESC LIMIT 1 OFFSET ?
		)`,
		r.max,
	)
	return err
}

// Recent returns up to limit events, newest first.
func (r *EventRepository) Recent(limit int) ([]*Event, error) {
	if limit <= 0 || limit > r.max {
		limit = r.max
	}

	rows, err := r.db.Query(
		`SELECT id, kind, detail, created_at FROM session_events ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Count returns how many events of kind are stored. An empty kind counts all.
func (r *EventRepository) Count(kind string) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM session_events`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM session_events WHERE kind = ?`, kind).Scan(&n)
	}
	return n, err
}
