package image

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles image metadata persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new image Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Save inserts a new image record and returns it with the assigned ID.
func (r *Repository) Save(ctx context.Context, img *Image) (*Image, error) {
	saved := *img
	err := r.db.QueryRow(ctx,
		`INSERT INTO images (filename, url, file_size, mime_type, uploaded_at, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		img.Filename, img.URL, img.FileSize, img.MimeType, img.UploadedAt, img.UserID,
	).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	return &saved, nil
}

// CountByUser returns the number of images currently stored for the user.
func (r *Repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM images WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count images by user: %w", err)
	}
	return count, nil
}

// ListByUser returns all image records owned by the user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, filename, url, file_size, mime_type, uploaded_at, user_id
		 FROM images WHERE user_id = $1
		 ORDER BY uploaded_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images by user: %w", err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.Filename, &img.URL, &img.FileSize,
			&img.MimeType, &img.UploadedAt, &img.UserID); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}
	return images, nil
}
