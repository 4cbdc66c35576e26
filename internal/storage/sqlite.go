package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage keeps the history of benchmark runs and their iteration reports
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		project TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		termination_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS iterations (
		iteration_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		dataset_label TEXT NOT NULL,
		database_name TEXT,
		report_path TEXT,
		content_type TEXT NOT NULL DEFAULT 'application/json',
		report_json TEXT,
		passed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id);
	CREATE INDEX IF NOT EXISTS idx_iterations_label ON iterations(dataset_label);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginRun records the start of a run and returns its id
func (s *Storage) BeginRun(target, project string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO runs (target, project, started_at)
		VALUES (?, ?, ?)
	`, target, project, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to begin run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve run_id: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end of a run with the reason it ended
func (s *Storage) FinishRun(runID int64, reason string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, termination_reason = ?
		WHERE run_id = ?
	`, time.Now().UTC(), reason, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// AttachIteration stores an iteration's report against its run. Failed
// iterations without a report are stored with an empty body.
func (s *Storage) AttachIteration(it Iteration) (int64, error) {
	if it.ContentType == "" {
		it.ContentType = "application/json"
	}

	res, err := s.db.Exec(`
		INSERT INTO iterations (run_id, dataset_label, database_name, report_path, content_type, report_json, passed, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.RunID, it.DatasetLabel, it.DatabaseName, it.ReportPath, it.ContentType, it.ReportJSON, it.Passed, it.Error, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to attach iteration: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve iteration_id: %w", err)
	}
	return id, nil
}

// GetRun retrieves a run by id, returns nil if not found
func (s *Storage) GetRun(runID int64) (*Run, error) {
	var run Run
	var finished sql.NullTime
	var reason sql.NullString
	err := s.db.QueryRow(`
		SELECT run_id, target, project, started_at, finished_at, termination_reason
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.Target, &run.Project, &run.StartedAt, &finished, &reason)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	run.TerminationReason = reason.String
	return &run, nil
}

// ListIterations returns a run's iterations in insertion order
func (s *Storage) ListIterations(runID int64) ([]*Iteration, error) {
	rows, err := s.db.Query(`
		SELECT iteration_id, run_id, dataset_label, database_name, report_path, content_type, report_json, passed, error, created_at
		FROM iterations
		WHERE run_id = ?
		ORDER BY iteration_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list iterations: %w", err)
	}
	defer rows.Close()

	var iterations []*Iteration
	for rows.Next() {
		var it Iteration
		var dbName, path, body, errMsg sql.NullString
		if err := rows.Scan(&it.IterationID, &it.RunID, &it.DatasetLabel, &dbName, &path, &it.ContentType, &body, &it.Passed, &errMsg, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		it.DatabaseName = dbName.String
		it.ReportPath = path.String
		it.ReportJSON = body.String
		it.Error = errMsg.String
		iterations = append(iterations, &it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating iterations: %w", err)
	}

	return iterations, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
