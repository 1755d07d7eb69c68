package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const projectColumns = "id, name, description, created_at, updated_at"

func scanProject(scanner rowScanner) (*Project, error) {
	var (
		p           Project
		description sql.NullString
		created     sql.NullString
		updated     sql.NullString
	)
	if err := scanner.Scan(&p.ID, &p.Name, &description, &created, &updated); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.CreatedAt = parseStamp(created)
	p.UpdatedAt = parseStamp(updated)
	return &p, nil
}

// CreateProject inserts a project.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("create project: name required")
	}
	stamp := nowStamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, nullableString(description), stamp, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Project(ctx, id)
}

// Project fetches a project by identifier.
func (s *Store) Project(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

// Projects lists projects, most recently updated first.
func (s *Store) Projects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProject renames a project and bumps its update time.
func (s *Store) UpdateProject(ctx context.Context, id int64, name, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(name), nullableString(description), nowStamp(), id,
	)
	return expectOne(res, err, "update project", id)
}

// DeleteProject removes a project and, by cascade, its stages and processes.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return expectOne(res, err, "delete project", id)
}
