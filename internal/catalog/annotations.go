package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"kaizen/internal/annotation"
)

const annotationColumns = `id, process_id, video_type, annotation_type, start_time, end_time,
	x, y, width, height, end_x, end_y, text, color, stroke_width`

func scanAnnotation(scanner rowScanner) (*annotation.Annotation, error) {
	var (
		a               annotation.Annotation
		videoType, kind string
		endTime         sql.NullFloat64
		width, height   sql.NullFloat64
		endX, endY      sql.NullFloat64
		text            sql.NullString
	)
	if err := scanner.Scan(
		&a.ID, &a.ProcessID, &videoType, &kind, &a.StartTime, &endTime,
		&a.X, &a.Y, &width, &height, &endX, &endY, &text, &a.Color, &a.StrokeWidth,
	); err != nil {
		return nil, err
	}
	a.VideoType = annotation.VideoType(videoType)
	a.Kind = annotation.Kind(kind)
	a.EndTime = floatPtr(endTime)
	a.Width = floatPtr(width)
	a.Height = floatPtr(height)
	a.EndX = floatPtr(endX)
	a.EndY = floatPtr(endY)
	a.Text = text.String
	return &a, nil
}

func defaultAnnotation(a *annotation.Annotation) {
	if a.Color == "" {
		a.Color = annotation.Palette[0]
	}
	if a.StrokeWidth <= 0 {
		a.StrokeWidth = 3
	}
}

// CreateAnnotation stores a validated annotation.
func (s *Store) CreateAnnotation(ctx context.Context, a annotation.Annotation) (*annotation.Annotation, error) {
	defaultAnnotation(&a)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO annotations (
		process_id, video_type, annotation_type, start_time, end_time,
		x, y, width, height, end_x, end_y, text, color, stroke_width
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProcessID, string(a.VideoType), string(a.Kind), a.StartTime, nullableFloat(a.EndTime),
		a.X, a.Y, nullableFloat(a.Width), nullableFloat(a.Height), nullableFloat(a.EndX), nullableFloat(a.EndY),
		nullableString(a.Text), a.Color, a.StrokeWidth,
	)
	if err != nil {
		return nil, fmt.Errorf("insert annotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Annotation(ctx, id)
}

// Annotation fetches an annotation by identifier.
func (s *Store) Annotation(ctx context.Context, id int64) (*annotation.Annotation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+annotationColumns+" FROM annotations WHERE id = ?", id)
	a, err := scanAnnotation(row)
	if err != nil {
		return nil, notFound(err, "annotation", id)
	}
	return a, nil
}

// AnnotationsByProcess lists a process's annotations for one recording,
// ordered by start time. An empty video type returns both recordings.
func (s *Store) AnnotationsByProcess(ctx context.Context, processID int64, videoType annotation.VideoType) ([]annotation.Annotation, error) {
	query := "SELECT " + annotationColumns + " FROM annotations WHERE process_id = ?"
	args := []any{processID}
	if videoType != "" {
		query += " AND video_type = ?"
		args = append(args, string(videoType))
	}
	query += " ORDER BY start_time, id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()
	var out []annotation.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateAnnotation rewrites an annotation in place.
func (s *Store) UpdateAnnotation(ctx context.Context, a annotation.Annotation) error {
	defaultAnnotation(&a)
	if err := a.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE annotations SET
		video_type = ?, annotation_type = ?, start_time = ?, end_time = ?,
		x = ?, y = ?, width = ?, height = ?, end_x = ?, end_y = ?, text = ?, color = ?, stroke_width = ?
		WHERE id = ?`,
		string(a.VideoType), string(a.Kind), a.StartTime, nullableFloat(a.EndTime),
		a.X, a.Y, nullableFloat(a.Width), nullableFloat(a.Height), nullableFloat(a.EndX), nullableFloat(a.EndY),
		nullableString(a.Text), a.Color, a.StrokeWidth, a.ID,
	)
	return expectOne(res, err, "update annotation", a.ID)
}

// DeleteAnnotation removes an annotation.
func (s *Store) DeleteAnnotation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	return expectOne(res, err, "delete annotation", id)
}
