package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles persistence of classification reports to SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	dir    string // Report directory
}

// Open creates or opens a report database at dir/report.db, creating dir
// when needed. Commands pass the configured output directory, .sharelens by
// default.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	dbPath := filepath.Join(dir, "report.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Pragmas are per connection; keep a single one so they always apply.
	db.SetMaxOpenConns(1)

	// Enable foreign keys and WAL mode for better performance
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	// Create schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:     db,
		dbPath: dbPath,
		dir:    dir,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// Dir returns the report directory.
func (s *Store) Dir() string {
	return s.dir
}

// Clear removes all data from the database.
func (s *Store) Clear() error {
	tables := []string{"diagnostics", "entity_files", "entities", "passes", "metadata"}
	for _, table := range tables {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}
	return nil
}

// SetMetadata stores a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

// Stats holds statistics about the stored report.
type Stats struct {
	PassCount         int       `json:"pass_count"`
	EntityCount       int       `json:"entity_count"`
	NotShared         int       `json:"not_shared"`
	SharedBySource    int       `json:"shared_by_source"`
	SharedByReference int       `json:"shared_by_reference"`
	DiagnosticCount   int       `json:"diagnostic_count"`
	ScannedAt         time.Time `json:"scanned_at"`
}

// GetStats returns statistics about the stored report.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM passes", &stats.PassCount},
		{"SELECT COUNT(*) FROM entities", &stats.EntityCount},
		{"SELECT COUNT(*) FROM entities WHERE share_kind = 'not_shared'", &stats.NotShared},
		{"SELECT COUNT(*) FROM entities WHERE share_kind = 'shared_by_source'", &stats.SharedBySource},
		{"SELECT COUNT(*) FROM entities WHERE share_kind = 'shared_by_reference'", &stats.SharedByReference},
		{"SELECT COUNT(*) FROM diagnostics", &stats.DiagnosticCount},
	}

	for _, r := range rows {
		if err := s.db.QueryRow(r.query).Scan(r.dest); err != nil {
			return nil, fmt.Errorf("counting (%s): %w", r.query, err)
		}
	}

	// Get scan timestamp from metadata
	if ts, err := s.GetMetadata("scanned_at"); err == nil {
		stats.ScannedAt, _ = time.Parse(time.RFC3339, ts)
	}

	return stats, nil
}

// Report is the content of report.json: every pass with the share kind of
// each entity keyed by canonical member key.
type Report struct {
	Version     string       `json:"version"`
	ProjectPath string       `json:"project_path,omitempty"`
	ScannedAt   time.Time    `json:"scanned_at"`
	Passes      []PassReport `json:"passes"`
}

// PassReport is one pass within Report.
type PassReport struct {
	Pass
	Entities    map[string]string `json:"entities"`
	Diagnostics []string          `json:"diagnostics,omitempty"`
}

// WriteReportJSON writes report.json next to the database.
func (s *Store) WriteReportJSON() error {
	stats, err := s.GetStats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	passes, err := s.ListPasses()
	if err != nil {
		return fmt.Errorf("listing passes: %w", err)
	}

	projectPath, _ := s.GetMetadata("project_dir")
	report := &Report{
		Version:     "1",
		ProjectPath: projectPath,
		ScannedAt:   stats.ScannedAt,
		Passes:      make([]PassReport, 0, len(passes)),
	}

	for _, p := range passes {
		entities, err := s.ListEntities(EntityFilter{Pass: p.Name})
		if err != nil {
			return fmt.Errorf("listing entities of %s: %w", p.Name, err)
		}
		diags, err := s.ListDiagnostics(p.Name)
		if err != nil {
			return fmt.Errorf("listing diagnostics of %s: %w", p.Name, err)
		}

		pr := PassReport{Pass: p, Entities: make(map[string]string, len(entities))}
		for _, e := range entities {
			pr.Entities[e.Key] = e.ShareKind
		}
		for _, d := range diags {
			pr.Diagnostics = append(pr.Diagnostics, d.Message)
		}
		report.Passes = append(report.Passes, pr)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report.json: %w", err)
	}

	reportPath := filepath.Join(s.dir, "report.json")
	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		return fmt.Errorf("writing report.json: %w", err)
	}

	return nil
}

// Tx returns the underlying database for advanced queries.
// Use with caution - prefer adding methods to Store instead.
func (s *Store) Tx() *sql.DB {
	return s.db
}

// BeginBatch starts a transaction for batch inserts.
// Call Commit() when done, or Rollback() on error.
func (s *Store) BeginBatch() (*BatchTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx wraps a transaction for batch operations.
type BatchTx struct {
	tx *sql.Tx
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}

// DeletePass removes a pass and, through cascading deletes, its entities,
// files and diagnostics.
func (b *BatchTx) DeletePass(name string) error {
	_, err := b.tx.Exec("DELETE FROM passes WHERE name = ?", name)
	return err
}

// InsertPass inserts a pass within the batch and returns its ID.
func (b *BatchTx) InsertPass(p *Pass) (PassID, error) {
	serverDirs, err := json.Marshal(nonNil(p.ServerDirs))
	if err != nil {
		return 0, err
	}
	clientDirs, err := json.Marshal(nonNil(p.ClientDirs))
	if err != nil {
		return 0, err
	}
	result, err := b.tx.Exec(`
		INSERT INTO passes (name, server_dirs, client_dirs, server_packages, client_packages, shared_files, failures, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, string(serverDirs), string(clientDirs), p.ServerPackages, p.ClientPackages, p.SharedFiles, p.Failures, p.ScannedAt)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return PassID(id), nil
}

// InsertEntity inserts an entity and its files within the batch and returns
// its ID.
func (b *BatchTx) InsertEntity(e *Entity) (EntityID, error) {
	result, err := b.tx.Exec(`
		INSERT INTO entities (pass_id, key, kind, type_name, member, params, share_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.PassID, e.Key, e.Kind, e.TypeName, e.Member, e.Params, e.ShareKind)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, f := range e.Files {
		if _, err := b.tx.Exec(`
			INSERT INTO entity_files (entity_id, file) VALUES (?, ?)
			ON CONFLICT(entity_id, file) DO NOTHING
		`, id, f); err != nil {
			return 0, fmt.Errorf("inserting file %s: %w", f, err)
		}
	}
	return EntityID(id), nil
}

// InsertDiagnostic inserts a diagnostic within the batch.
func (b *BatchTx) InsertDiagnostic(d *Diagnostic) error {
	_, err := b.tx.Exec(`
		INSERT INTO diagnostics (pass_id, type_key, member_key, message)
		VALUES (?, ?, ?, ?)
	`, d.PassID, d.TypeKey, d.MemberKey, d.Message)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
