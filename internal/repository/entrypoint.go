package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hll/contentbot/internal/domain"
)

// EntryPointRepository is the durable record of persistent browser messages.
// Records outlive the process so the coordinator can re-bind to its messages
// after a restart.
type EntryPointRepository interface {
	Save(ctx context.Context, ep domain.EntryPoint) error
	Get(ctx context.Context, channelID string, catalog domain.CatalogKind) (domain.EntryPoint, error)
	List(ctx context.Context) ([]domain.EntryPoint, error)
	MarkStale(ctx context.Context, channelID string, catalog domain.CatalogKind) error
	Delete(ctx context.Context, channelID string, catalog domain.CatalogKind) error
}

type entryPointRepository struct {
	db *pgxpool.Pool
}

func NewEntryPointRepository(db *pgxpool.Pool) EntryPointRepository {
	return &entryPointRepository{
		db: db,
	}
}

// Save upserts on (channel_id, catalog): reissuing setup in a channel
// replaces the previous browser record and clears any stale mark.
func (r *entryPointRepository) Save(ctx context.Context, ep domain.EntryPoint) error {
	query := `
	INSERT INTO entry_points (channel_id, catalog, message_id, stale, created_at)
	VALUES ($1, $2, $3, false, $4)
	ON CONFLICT (channel_id, catalog)
	DO UPDATE SET message_id = $3, stale = false, created_at = $4`
	_, err := r.db.Exec(ctx, query, ep.ChannelID, ep.Catalog.String(), ep.MessageID, ep.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save entry point %s: %w", ep.Ref(), err)
	}

	return nil
}

func (r *entryPointRepository) Get(ctx context.Context, channelID string, catalog domain.CatalogKind) (domain.EntryPoint, error) {
	query := `
	SELECT channel_id, catalog, message_id, stale, created_at
	FROM entry_points
	WHERE channel_id = $1 AND catalog = $2`
	var (
		ep  domain.EntryPoint
		cat string
	)
	err := r.db.QueryRow(ctx, query, channelID, catalog.String()).
		Scan(&ep.ChannelID, &cat, &ep.MessageID, &ep.Stale, &ep.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EntryPoint{}, fmt.Errorf("entry point %s:%s: %w", channelID, catalog, domain.ErrNotFound)
		}
		return domain.EntryPoint{}, fmt.Errorf("failed to get entry point %s:%s: %w", channelID, catalog, err)
	}
	ep.Catalog = domain.CatalogKind(cat)
	return ep, nil
}

func (r *entryPointRepository) List(ctx context.Context) ([]domain.EntryPoint, error) {
	query := `
	SELECT channel_id, catalog, message_id, stale, created_at
	FROM entry_points
	ORDER BY created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entry points: %w", err)
	}
	defer rows.Close()

	var eps []domain.EntryPoint
	for rows.Next() {
		var (
			ep      domain.EntryPoint
			catalog string
		)
		if err := rows.Scan(&ep.ChannelID, &catalog, &ep.MessageID, &ep.Stale, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry point: %w", err)
		}
		ep.Catalog = domain.CatalogKind(catalog)
		eps = append(eps, ep)
	}
	return eps, rows.Err()
}

func (r *entryPointRepository) MarkStale(ctx context.Context, channelID string, catalog domain.CatalogKind) error {
	query := `UPDATE entry_points SET stale = true WHERE channel_id = $1 AND catalog = $2`
	_, err := r.db.Exec(ctx, query, channelID, catalog.String())
	if err != nil {
		return fmt.Errorf("failed to mark entry point %s:%s stale: %w", channelID, catalog, err)
	}
	return nil
}

func (r *entryPointRepository) Delete(ctx context.Context, channelID string, catalog domain.CatalogKind) error {
	query := `DELETE FROM entry_points WHERE channel_id = $1 AND catalog = $2`
	_, err := r.db.Exec(ctx, query, channelID, catalog.String())
	if err != nil {
		return fmt.Errorf("failed to delete entry point %s:%s: %w", channelID, catalog, err)
	}
	return nil
}
