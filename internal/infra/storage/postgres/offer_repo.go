package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// OfferRepo implements storage.OfferRepository on PostgreSQL.
// Item id lists are stored as JSONB; order is preserved.
type OfferRepo struct {
	db *sqlx.DB
}

func NewOfferRepo(db *DB) *OfferRepo {
	return &OfferRepo{db: db.DB}
}

func (r *OfferRepo) Create(ctx context.Context, offer *domain.TradeOffer) error {
	offered, err := json.Marshal(offer.OfferedItemIDs)
	if err != nil {
		return fmt.Errorf("marshal offered items: %w", err)
	}
	requested, err := json.Marshal(offer.RequestedItemIDs)
	if err != nil {
		return fmt.Errorf("marshal requested items: %w", err)
	}

	query := `
		INSERT INTO trade_offers
			(id, proposer_id, receiver_id, offered_item_ids, requested_item_ids, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		offer.ID, offer.ProposerID, offer.ReceiverID,
		offered, requested,
		offer.Status, offer.Message, offer.CreatedAt, offer.UpdatedAt,
	)
	return err
}

func (r *OfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error) {
	query := `
		SELECT id, proposer_id, receiver_id, offered_item_ids, requested_item_ids, status, message, created_at, updated_at
		FROM trade_offers
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	offer, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}
	return offer, err
}

// UpdateStatus writes the transition only if the row still holds the status
// the caller validated against. Zero rows affected means a concurrent
// transition won, unless the offer never existed.
func (r *OfferRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OfferStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trade_offers SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM trade_offers WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("offer %s: status changed concurrently: %w", id, domain.ErrInvalidState)
	}
	return nil
}

func (r *OfferRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.TradeOffer, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, proposer_id, receiver_id, offered_item_ids, requested_item_ids, status, message, created_at, updated_at
		FROM trade_offers
		WHERE proposer_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*domain.TradeOffer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*domain.TradeOffer, error) {
	var (
		offer     domain.TradeOffer
		offered   []byte
		requested []byte
	)
	err := row.Scan(
		&offer.ID, &offer.ProposerID, &offer.ReceiverID,
		&offered, &requested,
		&offer.Status, &offer.Message, &offer.CreatedAt, &offer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(offered, &offer.OfferedItemIDs); err != nil {
		return nil, fmt.Errorf("unmarshal offered items: %w", err)
	}
	if err := json.Unmarshal(requested, &offer.RequestedItemIDs); err != nil {
		return nil, fmt.Errorf("unmarshal requested items: %w", err)
	}
	return &offer, nil
}
