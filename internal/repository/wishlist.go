package repository

import (
	"context"
	"errors"
	"fmt"

	"memory-map-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const wishlistColumns = `id, user_id, title, description, latitude, longitude, priority, is_visited,
	address, place_name, place_details, created_at, updated_at`

// WishlistRepository handles database operations for wishlist places
type WishlistRepository struct {
	db *pgxpool.Pool
}

// NewWishlistRepository creates a new wishlist repository
func NewWishlistRepository(db *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// Create creates a new wishlist place
func (r *WishlistRepository) Create(ctx context.Context, place *models.WishlistPlace) error {
	query := `
		INSERT INTO wishlist_places (` + wishlistColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		place.ID, place.UserID, place.Title, place.Description, place.Latitude, place.Longitude,
		place.Priority, place.IsVisited, place.Address, place.PlaceName, place.PlaceDetails,
		place.CreatedAt, place.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wishlist place: %w", err)
	}
	return nil
}

// GetByID retrieves a wishlist place by ID
func (r *WishlistRepository) GetByID(ctx context.Context, id string) (*models.WishlistPlace, error) {
	query := `SELECT ` + wishlistColumns + ` FROM wishlist_places WHERE id = $1`
	place, err := scanWishlistPlace(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wishlist place not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wishlist place: %w", err)
	}
	return place, nil
}

// ListByUser retrieves the wishlist of a user, highest priority first
func (r *WishlistRepository) ListByUser(ctx context.Context, userID string) ([]*models.WishlistPlace, error) {
	query := `
		SELECT ` + wishlistColumns + `
		FROM wishlist_places
		WHERE user_id = $1
		ORDER BY priority DESC, created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist places: %w", err)
	}
	defer rows.Close()

	places := []*models.WishlistPlace{}
	for rows.Next() {
		place, err := scanWishlistPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist place: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist places: %w", err)
	}
	return places, nil
}

// Update writes the priority and visited flag of a wishlist place
func (r *WishlistRepository) Update(ctx context.Context, place *models.WishlistPlace) error {
	query := `
		UPDATE wishlist_places
		SET priority = $2, is_visited = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, place.ID, place.Priority, place.IsVisited, place.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update wishlist place: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("wishlist place not found: %w", models.ErrNotFound)
	}
	return nil
}

// Delete deletes a wishlist place by ID
func (r *WishlistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM wishlist_places WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist place: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("wishlist place not found: %w", models.ErrNotFound)
	}
	return nil
}

func scanWishlistPlace(row pgx.Row) (*models.WishlistPlace, error) {
	var p models.WishlistPlace
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.Latitude, &p.Longitude, &p.Priority, &p.IsVisited,
		&p.Address, &p.PlaceName, &p.PlaceDetails, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
