package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-escrow-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// DealStore implements ports.DealStore backed by PostgreSQL. Status
// writes are compare-and-set on the expected prior status, which keeps
// deal transitions monotonic even under concurrent actors.
type DealStore struct {
	pool Pool
}

// NewDealStore creates a new DealStore.
func NewDealStore(pool Pool) *DealStore {
	return &DealStore{pool: pool}
}

const dealColumns = `deal_id, buyer_id, seller_id, amount, description, status, funded_at, created_at, updated_at`

// Create inserts a new deal.
func (s *DealStore) Create(ctx context.Context, tx pgx.Tx, d *domain.Deal) error {
	query := `INSERT INTO deals (` + dealColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := exec(ctx, s.pool, tx, query,
		d.ID, d.BuyerID, d.SellerID, d.Amount, d.Description,
		d.Status, d.FundedAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

// Get fetches a deal by id. Returns nil, nil when absent.
func (s *DealStore) Get(ctx context.Context, dealID string) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE deal_id = $1`

	d := &domain.Deal{}
	err := s.pool.QueryRow(ctx, query, dealID).Scan(
		&d.ID, &d.BuyerID, &d.SellerID, &d.Amount, &d.Description,
		&d.Status, &d.FundedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return d, nil
}

// UpdateStatus applies a guarded status transition.
func (s *DealStore) UpdateStatus(ctx context.Context, tx pgx.Tx, dealID string, from, to domain.DealStatus) (bool, error) {
	query := `UPDATE deals SET status = $1, updated_at = NOW()
		WHERE deal_id = $2 AND status = $3`

	affected, err := exec(ctx, s.pool, tx, query, to, dealID, from)
	if err != nil {
		return false, fmt.Errorf("update deal status: %w", err)
	}
	return affected > 0, nil
}

// MarkFunded records the ACCEPTED -> FUNDED transition together with the
// funding timestamp in one guarded write.
func (s *DealStore) MarkFunded(ctx context.Context, tx pgx.Tx, dealID string) (bool, error) {
	query := `UPDATE deals SET status = $1, funded_at = NOW(), updated_at = NOW()
		WHERE deal_id = $2 AND status = $3`

	affected, err := exec(ctx, s.pool, tx, query,
		domain.DealStatusFunded, dealID, domain.DealStatusAccepted)
	if err != nil {
		return false, fmt.Errorf("mark deal funded: %w", err)
	}
	return affected > 0, nil
}

// ListByUser returns deals the user participates in, newest first.
func (s *DealStore) ListByUser(ctx context.Context, userID int64) ([]domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var result []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := rows.Scan(
			&d.ID, &d.BuyerID, &d.SellerID, &d.Amount, &d.Description,
			&d.Status, &d.FundedAt, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return result, nil
}
