package mysql

import (
	"context"
	"database/sql"
	"time"

	"bidding-engine/internal/domain"
)

// MySQLBidArchive is the write-behind sink for accepted bids. Rows are keyed
// (lot_id, seq) so a replayed event stream is idempotent, and reading back in
// sequence order reconstructs a lot's ledger exactly.
type MySQLBidArchive struct {
	db *sql.DB
}

func NewMySQLBidArchive(db *sql.DB) *MySQLBidArchive {
	return &MySQLBidArchive{db: db}
}

func (r *MySQLBidArchive) SaveAcceptedBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO accepted_bids (lot_id, seq, participant_id, amount, bid_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE seq = seq
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.LotID, bid.Sequence, bid.ParticipantID, bid.Amount, bid.At, time.Now())
	return err
}

func (r *MySQLBidArchive) GetAcceptedBids(ctx context.Context, lotID string) ([]*domain.Bid, error) {
	query := `
        SELECT lot_id, seq, participant_id, amount, bid_at
        FROM accepted_bids
        WHERE lot_id = ?
        ORDER BY seq ASC
    `

	rows, err := r.db.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid

		err := rows.Scan(&bid.LotID, &bid.Sequence, &bid.ParticipantID,
			&bid.Amount, &bid.At)
		if err != nil {
			return nil, err
		}

		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
