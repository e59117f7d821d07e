package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ApplyDelta upserts the (bank, blood type) row and applies the delta in a
// single statement. The row lock taken by the UPDATE serialises concurrent
// deltas per key; there is no select-compute-update window to lose writes
// in. Absent rows are seeded at zero before the delta applies, and subtract
// clamps at zero instead of erroring.
func (r *Repository) ApplyDelta(ctx context.Context, bankID int64, bloodType string, action Action, amount int) (Record, error) {
	if r == nil {
		return Record{}, errors.New("inventory repository not initialised")
	}
	var rec Record
	err := r.pool.QueryRow(ctx, `INSERT INTO blood_inventory (bank_id, blood_type, units, last_updated)
VALUES ($1, $2, CASE WHEN $3::text = 'subtract' THEN 0 ELSE $4::int END, NOW())
ON CONFLICT (bank_id, blood_type) DO UPDATE SET
	units = CASE $3::text
		WHEN 'set' THEN $4::int
		WHEN 'add' THEN blood_inventory.units + $4::int
		ELSE GREATEST(blood_inventory.units - $4::int, 0)
	END,
	last_updated = NOW()
RETURNING bank_id, blood_type, units, last_updated`, bankID, bloodType, string(action), amount).
		Scan(&rec.BankID, &rec.BloodType, &rec.Units, &rec.LastUpdated)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListByBank returns every inventory row for the bank ordered by blood type.
func (r *Repository) ListByBank(ctx context.Context, bankID int64) ([]Record, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT bank_id, blood_type, units, last_updated
FROM blood_inventory WHERE bank_id = $1 ORDER BY blood_type`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.BankID, &rec.BloodType, &rec.Units, &rec.LastUpdated); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// SeedBank inserts the 8 zero-unit rows for a newly created bank. Existing
// rows are left untouched so the call is safe to retry.
func (r *Repository) SeedBank(ctx context.Context, bankID int64) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO blood_inventory (bank_id, blood_type, units, last_updated)
SELECT $1, t, 0, NOW() FROM unnest($2::text[]) AS t
ON CONFLICT (bank_id, blood_type) DO NOTHING`, bankID, BloodTypes)
	return err
}
