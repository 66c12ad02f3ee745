package mysql

import (
	"context"
	"database/sql"
	"time"

	"bidding-engine/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLLotRepository struct {
	db *sql.DB
}

func NewMySQLLotRepository(db *sql.DB) *MySQLLotRepository {
	return &MySQLLotRepository{db: db}
}

func (r *MySQLLotRepository) CreateLot(ctx context.Context, lot *domain.Lot) error {
	query := `
        INSERT INTO lots (id, starting_price, min_increment, quantity, currency,
                          scheduled_start, scheduled_end, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		lot.ID, lot.StartingPrice, lot.MinIncrement, lot.Quantity, lot.Currency,
		lot.ScheduledStart, lot.ScheduledEnd, int(lot.Status), lot.CreatedAt, lot.UpdatedAt)
	return err
}

func (r *MySQLLotRepository) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	query := `
        SELECT id, starting_price, min_increment, quantity, currency,
               scheduled_start, scheduled_end, status, created_at, updated_at
        FROM lots WHERE id = ?
    `

	var lot domain.Lot
	var status int

	err := r.db.QueryRowContext(ctx, query, lotID).Scan(
		&lot.ID, &lot.StartingPrice, &lot.MinIncrement, &lot.Quantity, &lot.Currency,
		&lot.ScheduledStart, &lot.ScheduledEnd, &status, &lot.CreatedAt, &lot.UpdatedAt)

	if err != nil {
		return nil, err
	}

	lot.Status = domain.LotStatus(status)
	return &lot, nil
}

func (r *MySQLLotRepository) UpdateLotStatus(ctx context.Context, lotID string, status domain.LotStatus) error {
	query := `UPDATE lots SET status = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, int(status), time.Now(), lotID)
	return err
}

func (r *MySQLLotRepository) GetLotsByStatus(ctx context.Context, status domain.LotStatus) ([]*domain.Lot, error) {
	query := `
        SELECT id, starting_price, min_increment, quantity, currency,
               scheduled_start, scheduled_end, status, created_at, updated_at
        FROM lots WHERE status = ?
    `

	rows, err := r.db.QueryContext(ctx, query, int(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []*domain.Lot
	for rows.Next() {
		var lot domain.Lot
		var st int

		err := rows.Scan(&lot.ID, &lot.StartingPrice, &lot.MinIncrement, &lot.Quantity,
			&lot.Currency, &lot.ScheduledStart, &lot.ScheduledEnd, &st,
			&lot.CreatedAt, &lot.UpdatedAt)
		if err != nil {
			return nil, err
		}

		lot.Status = domain.LotStatus(st)
		lots = append(lots, &lot)
	}

	return lots, rows.Err()
}
