package workstore

import (
	"database/sql"
	"fmt"

	"github.com/benchwright/benchwright/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for workspaces and benchmark
// sessions. The registry and bench controller load from it on start and
// flush through it on every mutation.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertWorkspace inserts or updates a workspace record
func (s *Store) UpsertWorkspace(rec *domain.WorkspaceRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO workspaces (id, base_repo, branch, path, state, created_at, last_touched)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			state = excluded.state,
			last_touched = excluded.last_touched
	`,
		rec.ID,
		rec.BaseRepo,
		rec.Branch,
		rec.Path,
		string(rec.State),
		rec.CreatedAt,
		rec.LastTouched,
	)
	return err
}

// GetWorkspace retrieves a workspace by id
func (s *Store) GetWorkspace(id string) (*domain.WorkspaceRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, base_repo, branch, path, state, created_at, last_touched
		FROM workspaces WHERE id = ?
	`, id)

	rec, err := scanWorkspace(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Component: "workstore", ID: id}
	}
	return rec, err
}

// WorkspaceListOptions specifies filters for listing workspaces
type WorkspaceListOptions struct {
	BaseRepo string
	State    domain.WorkspaceState
}

// ListWorkspaces returns workspaces matching the given options
func (s *Store) ListWorkspaces(opts WorkspaceListOptions) ([]*domain.WorkspaceRecord, error) {
	query := `SELECT id, base_repo, branch, path, state, created_at, last_touched FROM workspaces WHERE 1=1`
	var args []interface{}

	if opts.BaseRepo != "" {
		query += " AND base_repo = ?"
		args = append(args, opts.BaseRepo)
	}
	if opts.State != "" {
		query += " AND state = ?"
		args = append(args, string(opts.State))
	}

	query += " ORDER BY created_at, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.WorkspaceRecord
	for rows.Next() {
		rec, err := scanWorkspace(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// UpsertSession inserts or updates a session row. Samples are stored
// separately via AppendSample and are not written here.
func (s *Store) UpsertSession(sess *domain.BenchmarkSession) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, workspace_id, target, state, verdict, delta, threshold_pct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			verdict = excluded.verdict,
			delta = excluded.delta,
			threshold_pct = excluded.threshold_pct,
			updated_at = excluded.updated_at
	`,
		sess.ID,
		sess.WorkspaceID,
		sess.Target,
		string(sess.State),
		string(sess.Verdict),
		sess.Delta,
		sess.ThresholdPct,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	return err
}

// AppendSample appends one sample row for a session. Samples are append-only:
// there is no update or delete path.
func (s *Store) AppendSample(sessionID string, sample domain.Sample) error {
	_, err := s.db.Exec(`
		INSERT INTO samples (session_id, label, value, unit, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, string(sample.Label), sample.Value, sample.Unit, sample.At)
	return err
}

// GetSession retrieves a session by id, including its samples
func (s *Store) GetSession(id string) (*domain.BenchmarkSession, error) {
	row := s.db.QueryRow(`
		SELECT id, workspace_id, target, state, verdict, delta, threshold_pct, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Component: "workstore", ID: id}
	}
	if err != nil {
		return nil, err
	}

	sess.Samples, err = s.listSamples(id)
	return sess, err
}

// SessionListOptions specifies filters for listing sessions
type SessionListOptions struct {
	WorkspaceID string
	State       domain.SessionState
}

// ListSessions returns sessions matching the given options, with samples
func (s *Store) ListSessions(opts SessionListOptions) ([]*domain.BenchmarkSession, error) {
	query := `SELECT id, workspace_id, target, state, verdict, delta, threshold_pct, created_at, updated_at FROM sessions WHERE 1=1`
	var args []interface{}

	if opts.WorkspaceID != "" {
		query += " AND workspace_id = ?"
		args = append(args, opts.WorkspaceID)
	}
	if opts.State != "" {
		query += " AND state = ?"
		args = append(args, string(opts.State))
	}

	query += " ORDER BY created_at, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.BenchmarkSession
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		sess.Samples, err = s.listSamples(sess.ID)
		if err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

func (s *Store) listSamples(sessionID string) ([]domain.Sample, error) {
	rows, err := s.db.Query(`
		SELECT label, value, unit, recorded_at
		FROM samples WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		var sm domain.Sample
		var label string
		if err := rows.Scan(&label, &sm.Value, &sm.Unit, &sm.At); err != nil {
			return nil, err
		}
		sm.Label = domain.SampleLabel(label)
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

func scanWorkspace(scan func(...interface{}) error) (*domain.WorkspaceRecord, error) {
	var rec domain.WorkspaceRecord
	var state string
	var path sql.NullString

	err := scan(&rec.ID, &rec.BaseRepo, &rec.Branch, &path, &state, &rec.CreatedAt, &rec.LastTouched)
	if err != nil {
		return nil, err
	}

	rec.State = domain.WorkspaceState(state)
	if path.Valid {
		rec.Path = path.String
	}
	return &rec, nil
}

func scanSession(scan func(...interface{}) error) (*domain.BenchmarkSession, error) {
	var sess domain.BenchmarkSession
	var state, verdict string

	err := scan(&sess.ID, &sess.WorkspaceID, &sess.Target, &state, &verdict,
		&sess.Delta, &sess.ThresholdPct, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sess.State = domain.SessionState(state)
	sess.Verdict = domain.Verdict(verdict)
	return &sess, nil
}
