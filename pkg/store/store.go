package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"aistate/pkg/models"

	_ "modernc.org/sqlite"
)

// serviceNamePattern allows names such as "chat-ui" or "models.v2".
var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store keeps the availability state of each service in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (or creates) the state database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	ctx := context.Background()

	// WAL lets readers proceed while a write is committing.
	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
	}

	store := &Store{db: database}
	if err := store.Initialize(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}

	return store, nil
}

// Initialize creates the database schema.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// ValidateServiceName checks if the service name is usable as a key.
func ValidateServiceName(name string) error {
	if name == "" || len(name) > serviceNameMaxLength || !serviceNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidService, name)
	}
	return nil
}

// Get returns the current state of service. A service that was never written is down.
func (s *Store) Get(ctx context.Context, service string) (*models.StateRecord, error) {
	if err := ValidateServiceName(service); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record := &models.StateRecord{Service: service}
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state, updated_at FROM service_states WHERE service = ?`, service,
	).Scan(&state, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		record.State = models.StateDown
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	record.State = models.AvailabilityState(state)
	return record, nil
}

// Set stores state for service and appends it to the history in one transaction.
func (s *Store) Set(ctx context.Context, service string, state models.AvailabilityState) (*models.StateRecord, error) {
	if err := ValidateServiceName(service); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidState, state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO service_states (service, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(service) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		service, string(state), now,
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state_history (service, state, changed_at) VALUES (?, ?, ?)`,
		service, string(state), now,
	); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return &models.StateRecord{Service: service, State: state, UpdatedAt: now}, nil
}

// History returns up to limit transitions of service, newest first.
func (s *Store) History(ctx context.Context, service string, limit int) ([]models.StateHistoryEntry, error) {
	if err := ValidateServiceName(service); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service, state, changed_at FROM state_history WHERE service = ? ORDER BY id DESC LIMIT ?`,
		service, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer rows.Close()

	entries := make([]models.StateHistoryEntry, 0, limit)
	for rows.Next() {
		var entry models.StateHistoryEntry
		var state string
		if err := rows.Scan(&entry.ID, &entry.Service, &state, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		entry.State = models.AvailabilityState(state)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return entries, nil
}
