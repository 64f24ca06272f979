package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

const entityColumns = `e.id, e.pass_id, p.name, e.key, e.kind, e.type_name,
	COALESCE(e.member, ''), COALESCE(e.params, ''), e.share_kind`

// ListPasses returns every pass ordered by name.
func (s *Store) ListPasses() ([]Pass, error) {
	rows, err := s.db.Query(`
		SELECT id, name, server_dirs, client_dirs, server_packages, client_packages, shared_files, failures, scanned_at
		FROM passes ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying passes: %w", err)
	}
	defer rows.Close()

	passes := []Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, *p)
	}
	return passes, rows.Err()
}

// GetPassByName returns the pass named name.
func (s *Store) GetPassByName(name string) (*Pass, error) {
	row := s.db.QueryRow(`
		SELECT id, name, server_dirs, client_dirs, server_packages, client_packages, shared_files, failures, scanned_at
		FROM passes WHERE name = ?
	`, name)
	return scanPass(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (*Pass, error) {
	var (
		p                      Pass
		serverDirs, clientDirs string
	)
	if err := row.Scan(&p.ID, &p.Name, &serverDirs, &clientDirs, &p.ServerPackages,
		&p.ClientPackages, &p.SharedFiles, &p.Failures, &p.ScannedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(serverDirs), &p.ServerDirs); err != nil {
		return nil, fmt.Errorf("decoding server dirs of %s: %w", p.Name, err)
	}
	if err := json.Unmarshal([]byte(clientDirs), &p.ClientDirs); err != nil {
		return nil, fmt.Errorf("decoding client dirs of %s: %w", p.Name, err)
	}
	return &p, nil
}

// ListEntities returns the entities matching filter in insertion order.
func (s *Store) ListEntities(filter EntityFilter) ([]Entity, error) {
	var (
		where []string
		args  []any
	)
	if filter.Pass != "" {
		where = append(where, "p.name = ?")
		args = append(args, filter.Pass)
	}
	if filter.ShareKind != "" {
		where = append(where, "e.share_kind = ?")
		args = append(args, filter.ShareKind)
	}
	if filter.Kind != "" {
		where = append(where, "e.kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.TypeName != "" {
		where = append(where, "e.type_name = ?")
		args = append(args, filter.TypeName)
	}

	query := "SELECT " + entityColumns + " FROM entities e JOIN passes p ON p.id = e.pass_id"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return s.queryEntities(query, args...)
}

// GetEntityByID returns an entity together with its files.
func (s *Store) GetEntityByID(id EntityID) (*Entity, error) {
	row := s.db.QueryRow("SELECT "+entityColumns+
		" FROM entities e JOIN passes p ON p.id = e.pass_id WHERE e.id = ?", id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, err
	}
	if e.Files, err = s.entityFiles(id); err != nil {
		return nil, err
	}
	return e, nil
}

// SearchEntities finds entities whose key contains query, case-insensitively.
func (s *Store) SearchEntities(query string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryEntities("SELECT "+entityColumns+
		" FROM entities e JOIN passes p ON p.id = e.pass_id"+
		" WHERE e.key LIKE ? ESCAPE '\\' ORDER BY e.type_name, e.id LIMIT ?",
		"%"+escapeLike(query)+"%", limit)
}

// ListDiagnostics returns the diagnostics of a pass, or of every pass when
// pass is empty.
func (s *Store) ListDiagnostics(pass string) ([]Diagnostic, error) {
	query := `
		SELECT d.id, d.pass_id, p.name, d.type_key, d.member_key, d.message
		FROM diagnostics d JOIN passes p ON p.id = d.pass_id`
	var args []any
	if pass != "" {
		query += " WHERE p.name = ?"
		args = append(args, pass)
	}
	query += " ORDER BY d.id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []Diagnostic{}
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.ID, &d.PassID, &d.Pass, &d.TypeKey, &d.MemberKey, &d.Message); err != nil {
			return nil, fmt.Errorf("scanning diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

func (s *Store) queryEntities(query string, args ...any) ([]Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	entities := []Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

func scanEntity(row scanner) (*Entity, error) {
	var e Entity
	if err := row.Scan(&e.ID, &e.PassID, &e.Pass, &e.Key, &e.Kind, &e.TypeName,
		&e.Member, &e.Params, &e.ShareKind); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	return &e, nil
}

func (s *Store) entityFiles(id EntityID) ([]string, error) {
	rows, err := s.db.Query("SELECT file FROM entity_files WHERE entity_id = ? ORDER BY file", id)
	if err != nil {
		return nil, fmt.Errorf("querying entity files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning entity file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
