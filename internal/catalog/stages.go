package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const stageColumns = "id, project_id, name, description, before_video_path, after_video_path, created_at"

func scanStage(scanner rowScanner) (*Stage, error) {
	var (
		st          Stage
		description sql.NullString
		before      sql.NullString
		after       sql.NullString
		created     sql.NullString
	)
	if err := scanner.Scan(&st.ID, &st.ProjectID, &st.Name, &description, &before, &after, &created); err != nil {
		return nil, err
	}
	st.Description = description.String
	st.BeforeVideoPath = before.String
	st.AfterVideoPath = after.String
	st.CreatedAt = parseStamp(created)
	return &st, nil
}

// CreateStage inserts a stage under a project.
func (s *Store) CreateStage(ctx context.Context, projectID int64, name, description string) (*Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("create stage: name required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stages (project_id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		projectID, name, nullableString(description), nowStamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert stage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Stage(ctx, id)
}

// Stage fetches a stage by identifier.
func (s *Store) Stage(ctx context.Context, id int64) (*Stage, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+stageColumns+" FROM stages WHERE id = ?", id)
	st, err := scanStage(row)
	if err != nil {
		return nil, notFound(err, "stage", id)
	}
	return st, nil
}

// StagesByProject lists a project's stages in creation order.
func (s *Store) StagesByProject(ctx context.Context, projectID int64) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+stageColumns+" FROM stages WHERE project_id = ? ORDER BY created_at, id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()
	var out []Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// UpdateStage stores name, description, and both video paths.
func (s *Store) UpdateStage(ctx context.Context, st Stage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stages SET name = ?, description = ?, before_video_path = ?, after_video_path = ? WHERE id = ?`,
		strings.TrimSpace(st.Name), nullableString(st.Description),
		nullableString(st.BeforeVideoPath), nullableString(st.AfterVideoPath), st.ID,
	)
	return expectOne(res, err, "update stage", st.ID)
}

// DeleteStage removes a stage and its processes.
func (s *Store) DeleteStage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stages WHERE id = ?`, id)
	return expectOne(res, err, "delete stage", id)
}
