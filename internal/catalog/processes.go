package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

const processColumns = `id, stage_id, name, description, improvement_note,
	before_start_time, before_end_time, after_start_time, after_end_time,
	time_saved, sort_order, process_type, subtitle_text, subtitle_after, subtitle_mode`

func scanProcess(scanner rowScanner) (*Process, error) {
	var (
		p             Process
		description   sql.NullString
		note          sql.NullString
		timeSaved     sql.NullFloat64
		processType   string
		subtitleText  sql.NullString
		subtitleAfter sql.NullString
		subtitleMode  sql.NullString
	)
	if err := scanner.Scan(
		&p.ID, &p.StageID, &p.Name, &description, &note,
		&p.BeforeStart, &p.BeforeEnd, &p.AfterStart, &p.AfterEnd,
		&timeSaved, &p.SortOrder, &processType, &subtitleText, &subtitleAfter, &subtitleMode,
	); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.ImprovementNote = note.String
	p.Type = ProcessType(processType)
	p.SubtitleText = subtitleText.String
	p.SubtitleAfter = subtitleAfter.String
	p.SubtitleMode = SubtitleMode(subtitleMode.String)
	if timeSaved.Valid {
		p.TimeSaved = timeSaved.Float64
	} else {
		p.TimeSaved = p.ComputeTimeSaved()
	}
	if p.SubtitleMode == "" {
		p.SubtitleMode = SubtitleCombined
	}
	return &p, nil
}

// CreateProcess appends a process to the end of its stage.
func (s *Store) CreateProcess(ctx context.Context, p Process) (*Process, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create process: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxOrder sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM processes WHERE stage_id = ?`, p.StageID).Scan(&maxOrder); err != nil {
		return nil, fmt.Errorf("max sort order: %w", err)
	}
	p.SortOrder = 0
	if maxOrder.Valid {
		p.SortOrder = int(maxOrder.Int64) + 1
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO processes (
		stage_id, name, description, improvement_note,
		before_start_time, before_end_time, after_start_time, after_end_time,
		time_saved, sort_order, process_type, subtitle_text, subtitle_after, subtitle_mode
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.StageID, p.Name, nullableString(p.Description), nullableString(p.ImprovementNote),
		p.BeforeStart, p.BeforeEnd, p.AfterStart, p.AfterEnd,
		p.TimeSaved, p.SortOrder, string(p.Type),
		nullableString(p.SubtitleText), nullableString(p.SubtitleAfter), string(p.SubtitleMode),
	)
	if err != nil {
		return nil, fmt.Errorf("insert process: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create process: %w", err)
	}
	return s.Process(ctx, id)
}

// Process fetches a process by identifier.
func (s *Store) Process(ctx context.Context, id int64) (*Process, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+processColumns+" FROM processes WHERE id = ?", id)
	p, err := scanProcess(row)
	if err != nil {
		return nil, notFound(err, "process", id)
	}
	return p, nil
}

// ProcessesByStage returns a stage's processes in play order.
func (s *Store) ProcessesByStage(ctx context.Context, stageID int64) ([]Process, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+processColumns+" FROM processes WHERE stage_id = ? ORDER BY sort_order, id", stageID)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()
	var out []Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProcess rewrites a process, recomputing its time saved. The sort
// order is left alone; use MoveProcess to reorder.
func (s *Store) UpdateProcess(ctx context.Context, p Process) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE processes SET
		name = ?, description = ?, improvement_note = ?,
		before_start_time = ?, before_end_time = ?, after_start_time = ?, after_end_time = ?,
		time_saved = ?, process_type = ?, subtitle_text = ?, subtitle_after = ?, subtitle_mode = ?
		WHERE id = ?`,
		p.Name, nullableString(p.Description), nullableString(p.ImprovementNote),
		p.BeforeStart, p.BeforeEnd, p.AfterStart, p.AfterEnd,
		p.TimeSaved, string(p.Type), nullableString(p.SubtitleText), nullableString(p.SubtitleAfter),
		string(p.SubtitleMode), p.ID,
	)
	return expectOne(res, err, "update process", p.ID)
}

// DeleteProcess removes a process and its annotations.
func (s *Store) DeleteProcess(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM processes WHERE id = ?`, id)
	return expectOne(res, err, "delete process", id)
}

// MoveProcess moves a process to position index within its stage and
// renumbers the stage so sort orders are dense.
func (s *Store) MoveProcess(ctx context.Context, id int64, index int) error {
	p, err := s.Process(ctx, id)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move process: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM processes WHERE stage_id = ? ORDER BY sort_order, id`, p.StageID)
	if err != nil {
		return fmt.Errorf("list stage order: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return fmt.Errorf("scan stage order: %w", err)
		}
		if pid != id {
			ids = append(ids, pid)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close stage order: %w", err)
	}
	if index < 0 {
		index = 0
	}
	if index > len(ids) {
		index = len(ids)
	}
	ids = append(ids[:index], append([]int64{id}, ids[index:]...)...)

	for order, pid := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE processes SET sort_order = ? WHERE id = ?`, order, pid); err != nil {
			return fmt.Errorf("renumber process %d: %w", pid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move process: %w", err)
	}
	return nil
}

// StageTimeSaved sums time saved across a stage's processes.
func (s *Store) StageTimeSaved(ctx context.Context, stageID int64) (float64, error) {
	var total sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT SUM(time_saved) FROM processes WHERE stage_id = ?`, stageID).Scan(&total); err != nil {
		return 0, fmt.Errorf("stage time saved: %w", err)
	}
	return total.Float64, nil
}
