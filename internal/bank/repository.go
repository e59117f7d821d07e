package bank

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifelink/lifelink/internal/inventory"
)

// Repository persists blood banks in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new bank and returns its id.
func (r *Repository) Insert(ctx context.Context, input CreateInput) (BloodBank, error) {
	var bank BloodBank
	err := r.pool.QueryRow(ctx, `INSERT INTO blood_banks (name, location, phone, hours, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING id, name, location, COALESCE(phone, ''), COALESCE(hours, ''), created_at`,
		input.Name, input.Location, nullString(input.Phone), nullString(input.Hours)).
		Scan(&bank.ID, &bank.Name, &bank.Location, &bank.Phone, &bank.Hours, &bank.CreatedAt)
	if err != nil {
		return BloodBank{}, err
	}
	return bank, nil
}

// GetByID returns one bank.
func (r *Repository) GetByID(ctx context.Context, id int64) (BloodBank, error) {
	var bank BloodBank
	err := r.pool.QueryRow(ctx, `SELECT id, name, location, COALESCE(phone, ''), COALESCE(hours, ''), created_at
FROM blood_banks WHERE id = $1`, id).
		Scan(&bank.ID, &bank.Name, &bank.Location, &bank.Phone, &bank.Hours, &bank.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BloodBank{}, ErrNotFound
	}
	if err != nil {
		return BloodBank{}, err
	}
	return bank, nil
}

// Exists reports whether the bank id references a known bank. Implements
// the inventory engine's BankDirectory port.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blood_banks WHERE id = $1)`, id).Scan(&found)
	return found, err
}

// Search lists banks with their inventory in one round trip, optionally
// filtered by a name/location substring.
func (r *Repository) Search(ctx context.Context, search string) ([]WithInventory, error) {
	query := `SELECT bb.id, bb.name, bb.location, COALESCE(bb.phone, ''), COALESCE(bb.hours, ''), bb.created_at,
	bi.blood_type, bi.units, bi.last_updated
FROM blood_banks bb
LEFT JOIN blood_inventory bi ON bi.bank_id = bb.id`
	args := []any{}
	if search != "" {
		query += ` WHERE bb.name ILIKE '%' || $1 || '%' OR bb.location ILIKE '%' || $1 || '%'`
		args = append(args, search)
	}
	query += ` ORDER BY bb.name, bb.id, bi.blood_type`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	banks := []WithInventory{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			bank BloodBank
			rec  inventory.Record
			// LEFT JOIN leaves inventory columns NULL for banks without rows
			bloodType   *string
			units       *int
			lastUpdated *time.Time
		)
		if err := rows.Scan(&bank.ID, &bank.Name, &bank.Location, &bank.Phone, &bank.Hours, &bank.CreatedAt,
			&bloodType, &units, &lastUpdated); err != nil {
			return nil, err
		}
		pos, ok := index[bank.ID]
		if !ok {
			pos = len(banks)
			index[bank.ID] = pos
			banks = append(banks, WithInventory{BloodBank: bank, Inventory: []inventory.Record{}})
		}
		if bloodType != nil {
			rec.BankID = bank.ID
			rec.BloodType = *bloodType
			rec.Units = *units
			rec.LastUpdated = *lastUpdated
			banks[pos].Inventory = append(banks[pos].Inventory, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return banks, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
