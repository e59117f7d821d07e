package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists blood requests in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `br.id, br.user_id, br.patient_name, br.blood_type, br.units_needed,
	br.hospital, COALESCE(br.location, ''), br.urgency, COALESCE(br.urgency_note, ''), br.status,
	COALESCE(u.name, ''), br.created_at`

// Insert stores a new request.
func (r *Repository) Insert(ctx context.Context, input CreateInput) (BloodRequest, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO blood_requests
	(user_id, patient_name, blood_type, units_needed, hospital, location, urgency, urgency_note, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', NOW())
RETURNING id`,
		input.UserID, input.PatientName, input.BloodType, input.UnitsNeeded,
		input.Hospital, nullString(input.Location), input.Urgency, nullString(input.UrgencyNote)).
		Scan(&id)
	if err != nil {
		return BloodRequest{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns one request joined with its requester name.
func (r *Repository) GetByID(ctx context.Context, id int64) (BloodRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+`
FROM blood_requests br LEFT JOIN users u ON br.user_id = u.id
WHERE br.id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return BloodRequest{}, ErrNotFound
	}
	return req, err
}

// List returns requests newest first, narrowed by the filter.
func (r *Repository) List(ctx context.Context, filter Filter) ([]BloodRequest, error) {
	query := `SELECT ` + selectColumns + `
FROM blood_requests br LEFT JOIN users u ON br.user_id = u.id`
	args := []any{}
	where := ""
	appendCond := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf("br.%s = $%d", column, len(args))
	}
	appendCond("blood_type", filter.BloodType)
	appendCond("status", filter.Status)
	appendCond("urgency", filter.Urgency)
	query += where + " ORDER BY br.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests := []BloodRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Update patches status and units, keeping existing values for blanks.
func (r *Repository) Update(ctx context.Context, id int64, status string, unitsNeeded int) (BloodRequest, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE blood_requests SET
	status = COALESCE(NULLIF($2, ''), status),
	units_needed = CASE WHEN $3 > 0 THEN $3 ELSE units_needed END
WHERE id = $1`, id, status, unitsNeeded)
	if err != nil {
		return BloodRequest{}, err
	}
	if tag.RowsAffected() == 0 {
		return BloodRequest{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a request.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blood_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive reports open requests. Feeds the realtime stats heartbeat.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM blood_requests WHERE status = 'pending'`).Scan(&n)
	return n, err
}

func scanRequest(row pgx.Row) (BloodRequest, error) {
	var req BloodRequest
	err := row.Scan(&req.ID, &req.UserID, &req.PatientName, &req.BloodType, &req.UnitsNeeded,
		&req.Hospital, &req.Location, &req.Urgency, &req.UrgencyNote, &req.Status,
		&req.RequesterName, &req.CreatedAt)
	return req, err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
