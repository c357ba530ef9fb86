package repository

import (
	"context"
	"errors"
	"fmt"

	"memory-map-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const memoryColumns = `id, user_id, title, description, latitude, longitude, date, stamp_type,
	address, place_name, place_details, created_by, created_at, updated_at`

// MemoryRepository handles database operations for memories and their images
type MemoryRepository struct {
	db *pgxpool.Pool
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Create inserts a memory together with its images
func (r *MemoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO memories (` + memoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = tx.Exec(ctx, query,
		memory.ID, memory.UserID, memory.Title, memory.Description, memory.Latitude, memory.Longitude,
		memory.Date, memory.StampType, memory.Address, memory.PlaceName, memory.PlaceDetails,
		memory.CreatedBy, memory.CreatedAt, memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}

	if err := insertImages(ctx, tx, memory.Images); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit memory: %w", err)
	}
	return nil
}

// GetByID retrieves a memory with its images
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = $1`

	memory, err := scanMemory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("memory not found: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	images, err := r.imagesFor(ctx, []string{memory.ID})
	if err != nil {
		return nil, err
	}
	memory.Images = images[memory.ID]
	if memory.Images == nil {
		memory.Images = []models.MemoryImage{}
	}
	return memory, nil
}

// ListByUser retrieves all memories of a user, newest date first
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*models.Memory, error) {
	query := `
		SELECT ` + memoryColumns + `
		FROM memories
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get memories: %w", err)
	}
	defer rows.Close()

	memories := []*models.Memory{}
	var ids []string
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, memory)
		ids = append(ids, memory.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memories: %w", err)
	}

	if len(ids) == 0 {
		return memories, nil
	}
	images, err := r.imagesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, memory := range memories {
		memory.Images = images[memory.ID]
		if memory.Images == nil {
			memory.Images = []models.MemoryImage{}
		}
	}
	return memories, nil
}

// Update writes the memory fields and applies image deletions and insertions
// in a single transaction. Deletions are restricted to images of this memory.
func (r *MemoryRepository) Update(ctx context.Context, memory *models.Memory, deleteImageIDs []string, newImages []models.MemoryImage) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE memories
		SET title = $2, description = $3, latitude = $4, longitude = $5, date = $6, stamp_type = $7,
			address = $8, place_name = $9, place_details = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query,
		memory.ID, memory.Title, memory.Description, memory.Latitude, memory.Longitude, memory.Date,
		memory.StampType, memory.Address, memory.PlaceName, memory.PlaceDetails, memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("memory not found: %w", models.ErrNotFound)
	}

	if len(deleteImageIDs) > 0 {
		_, err := tx.Exec(ctx,
			`DELETE FROM memory_images WHERE memory_id = $1 AND id = ANY($2)`,
			memory.ID, deleteImageIDs,
		)
		if err != nil {
			return fmt.Errorf("failed to delete memory images: %w", err)
		}
	}

	if err := insertImages(ctx, tx, newImages); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit memory update: %w", err)
	}
	return nil
}

// Delete removes a memory after removing its images
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM memory_images WHERE memory_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete memory images: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("memory not found: %w", models.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit memory delete: %w", err)
	}
	return nil
}

func (r *MemoryRepository) imagesFor(ctx context.Context, memoryIDs []string) (map[string][]models.MemoryImage, error) {
	query := `
		SELECT id, memory_id, url, filename, type, thumbnail_url, created_by, created_at
		FROM memory_images
		WHERE memory_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, memoryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory images: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.MemoryImage, len(memoryIDs))
	for rows.Next() {
		var img models.MemoryImage
		if err := rows.Scan(&img.ID, &img.MemoryID, &img.URL, &img.Filename, &img.Type, &img.ThumbnailURL, &img.CreatedBy, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory image: %w", err)
		}
		out[img.MemoryID] = append(out[img.MemoryID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memory images: %w", err)
	}
	return out, nil
}

func insertImages(ctx context.Context, tx pgx.Tx, images []models.MemoryImage) error {
	query := `
		INSERT INTO memory_images (id, memory_id, url, filename, type, thumbnail_url, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, img := range images {
		_, err := tx.Exec(ctx, query, img.ID, img.MemoryID, img.URL, img.Filename, img.Type, img.ThumbnailURL, img.CreatedBy, img.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create memory image: %w", err)
		}
	}
	return nil
}

func scanMemory(row pgx.Row) (*models.Memory, error) {
	var m models.Memory
	err := row.Scan(
		&m.ID, &m.UserID, &m.Title, &m.Description, &m.Latitude, &m.Longitude, &m.Date, &m.StampType,
		&m.Address, &m.PlaceName, &m.PlaceDetails, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
