// README: Decision journal backed by PostgreSQL, with an in-memory fallback.
package order

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal records how each offered order was resolved.
type Journal interface {
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, role string, limit int) ([]Event, error)
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS watcher_events (
    id         BIGSERIAL PRIMARY KEY,
    role       TEXT NOT NULL,
    order_id   TEXT NOT NULL,
    outcome    TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const journalIndex = `
CREATE INDEX IF NOT EXISTS watcher_events_role_idx ON watcher_events (role, created_at DESC)`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{journalSchema, journalIndex} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return s.db.QueryRow(ctx, `
        INSERT INTO watcher_events (role, order_id, outcome, detail, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`,
		e.Role, e.OrderID, string(e.Outcome), e.Detail, e.CreatedAt,
	).Scan(&e.ID)
}

// ListEvents returns the newest events for role first.
func (s *Store) ListEvents(ctx context.Context, role string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, role, order_id, outcome, detail, created_at
        FROM watcher_events
        WHERE role = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var outcome string
		if err := rows.Scan(&e.ID, &e.Role, &e.OrderID, &outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Outcome = Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MemoryJournal keeps the last max events per process.
type MemoryJournal struct {
	mu     sync.Mutex
	max    int
	nextID int64
	events []Event
}

func NewMemoryJournal(max int) *MemoryJournal {
	if max <= 0 {
		max = 200
	}
	return &MemoryJournal{max: max}
}

func (m *MemoryJournal) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.nextID++
	e.ID = m.nextID
	m.events = append(m.events, *e)
	if len(m.events) > m.max {
		m.events = m.events[len(m.events)-m.max:]
	}
	return nil
}

func (m *MemoryJournal) ListEvents(_ context.Context, role string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].Role == role {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}
