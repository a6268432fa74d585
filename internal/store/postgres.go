package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"complaint-desk/internal/common/database"
	"complaint-desk/internal/models"
)

const complaintColumns = `id, phone_number, category, subcategory, address, description, status,
	created_at, updated_at, completed_at, field_worker_id, field_worker_assigned, deadline_date`

const fieldWorkerColumns = `id, name, phone_number, master_category, work_status, version`

// Postgres is the lib/pq backed Store.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComplaint(row rowScanner) (models.Complaint, error) {
	var (
		c           models.Complaint
		status      string
		subcategory sql.NullString
		completedAt sql.NullTime
		workerID    sql.NullInt64
		workerName  sql.NullString
		deadline    sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.PhoneNumber, &c.Category, &subcategory, &c.Address, &c.Description, &status,
		&c.CreatedAt, &c.UpdatedAt, &completedAt, &workerID, &workerName, &deadline,
	)
	if err != nil {
		return models.Complaint{}, err
	}

	c.Status = models.ComplaintStatus(status)
	if subcategory.Valid {
		c.Subcategory = &subcategory.String
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if workerID.Valid {
		c.FieldWorkerID = &workerID.Int64
	}
	if workerName.Valid {
		c.FieldWorkerAssigned = &workerName.String
	}
	if deadline.Valid {
		c.DeadlineDate = &deadline.Time
	}
	return c, nil
}

func scanFieldWorker(row rowScanner) (models.FieldWorker, error) {
	var w models.FieldWorker
	err := row.Scan(&w.ID, &w.Name, &w.PhoneNumber, &w.MasterCategory, &w.WorkStatus, &w.Version)
	return w, err
}

func (p *Postgres) ListComplaints(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	query := "SELECT " + complaintColumns + " FROM complaints"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints := []models.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, c)
	}
	return complaints, rows.Err()
}

func (p *Postgres) GetComplaint(ctx context.Context, id int64) (models.Complaint, error) {
	c, err := scanComplaint(p.db.QueryRowContext(ctx,
		"SELECT "+complaintColumns+" FROM complaints WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Complaint{}, ErrNotFound
	}
	return c, err
}

func (p *Postgres) InsertComplaint(ctx context.Context, c models.Complaint) (models.Complaint, error) {
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	row := p.db.QueryRowContext(ctx, `
		INSERT INTO complaints (phone_number, category, subcategory, address, description, status,
			created_at, updated_at, completed_at, field_worker_id, field_worker_assigned, deadline_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+complaintColumns,
		c.PhoneNumber, c.Category, nullString(c.Subcategory), c.Address, c.Description, string(c.Status),
		c.CreatedAt, c.UpdatedAt, nullTime(c.CompletedAt), nullInt64(c.FieldWorkerID),
		nullString(c.FieldWorkerAssigned), nullTime(c.DeadlineDate),
	)
	return scanComplaint(row)
}

func (p *Postgres) ListFieldWorkers(ctx context.Context, filter models.FieldWorkerFilter) ([]models.FieldWorker, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("master_category = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		where = append(where, fmt.Sprintf("name = $%d", len(args)))
	}
	if filter.AvailableOnly {
		where = append(where, "work_status = TRUE")
	}

	query := "SELECT " + fieldWorkerColumns + " FROM field_workers"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := []models.FieldWorker{}
	for rows.Next() {
		w, err := scanFieldWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (p *Postgres) GetFieldWorker(ctx context.Context, id int64) (models.FieldWorker, error) {
	w, err := scanFieldWorker(p.db.QueryRowContext(ctx,
		"SELECT "+fieldWorkerColumns+" FROM field_workers WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.FieldWorker{}, ErrNotFound
	}
	return w, err
}

func (p *Postgres) InsertFieldWorker(ctx context.Context, w models.FieldWorker) (models.FieldWorker, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO field_workers (name, phone_number, master_category, work_status, version)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING `+fieldWorkerColumns,
		w.Name, w.PhoneNumber, w.MasterCategory, w.WorkStatus,
	)
	return scanFieldWorker(row)
}

func (p *Postgres) DeleteFieldWorker(ctx context.Context, id int64, expectVersion *int64) error {
	var (
		res sql.Result
		err error
	)
	if expectVersion == nil {
		res, err = p.db.ExecContext(ctx, "DELETE FROM field_workers WHERE id = $1", id)
	} else {
		res, err = p.db.ExecContext(ctx, "DELETE FROM field_workers WHERE id = $1 AND version = $2", id, *expectVersion)
	}
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if expectVersion == nil {
		return ErrNotFound
	}

	if _, err := p.GetFieldWorker(ctx, id); err != nil {
		return err
	}
	return ErrStaleWorker
}

func (p *Postgres) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT name FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (p *Postgres) CountOpenAssignments(ctx context.Context, workerID int64) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM complaints WHERE field_worker_id = $1 AND status = $2",
		workerID, string(models.StatusInProgress),
	).Scan(&n)
	return n, err
}

// ApplyTransition locks the complaint row, flips the worker with a version
// compare-and-swap, then writes the complaint, all in one transaction.
func (p *Postgres) ApplyTransition(ctx context.Context, t Transition) (models.Complaint, error) {
	var updated models.Complaint

	err := database.WithTx(ctx, p.db, nil, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			"SELECT status FROM complaints WHERE id = $1 FOR UPDATE", t.ComplaintID,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if models.ComplaintStatus(current) != t.From {
			return ErrStaleComplaint
		}

		if t.Worker != nil {
			res, err := tx.ExecContext(ctx, `
				UPDATE field_workers SET work_status = $1, version = version + 1
				WHERE id = $2 AND version = $3 AND work_status = $4`,
				t.Worker.Available, t.Worker.ID, t.Worker.ExpectVersion, !t.Worker.Available,
			)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrStaleWorker
			}
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE complaints SET status = $1, updated_at = $2, field_worker_id = $3,
				field_worker_assigned = $4, deadline_date = $5, completed_at = $6
			WHERE id = $7
			RETURNING `+complaintColumns,
			string(t.To), t.At, nullInt64(t.FieldWorkerID), nullString(t.FieldWorkerName),
			nullTime(t.Deadline), nullTime(t.CompletedAt), t.ComplaintID,
		)
		updated, err = scanComplaint(row)
		return err
	})
	if err != nil {
		return models.Complaint{}, err
	}
	return updated, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
