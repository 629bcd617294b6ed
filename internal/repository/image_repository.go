package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fluxgallery/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Insert(ctx context.Context, image models.GalleryImage) error {
	const query = `
		INSERT INTO gallery_images (
			id, user_id, image_url, prompt, style, model, expire_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ID,
		image.UserID,
		image.ImageURL,
		image.Prompt,
		image.Style,
		image.Model,
		image.ExpireAt,
	)
	return err
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.GalleryImage, error) {
	const query = `
		SELECT id, user_id, image_url, prompt, style, model, expire_at, created_at
		FROM gallery_images
		WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var image models.GalleryImage
	if err := row.Scan(
		&image.ID,
		&image.UserID,
		&image.ImageURL,
		&image.Prompt,
		&image.Style,
		&image.Model,
		&image.ExpireAt,
		&image.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GalleryImage{}, ErrImageNotFound
		}
		return models.GalleryImage{}, err
	}
	return image, nil
}

// ListByUser returns the user's gallery newest-first.
func (r *ImageRepository) ListByUser(ctx context.Context, userID string) ([]models.GalleryImage, error) {
	const query = `
		SELECT id, user_id, image_url, prompt, style, model, expire_at, created_at
		FROM gallery_images
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.GalleryImage
	for rows.Next() {
		var image models.GalleryImage
		if err := rows.Scan(
			&image.ID,
			&image.UserID,
			&image.ImageURL,
			&image.Prompt,
			&image.Style,
			&image.Model,
			&image.ExpireAt,
			&image.CreatedAt,
		); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

// Delete removes the image if it belongs to userID. Ownership is enforced in
// SQL so one user can never delete another user's image by guessing ids.
func (r *ImageRepository) Delete(ctx context.Context, id string, userID string) error {
	const query = `DELETE FROM gallery_images WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM gallery_images WHERE expire_at IS NOT NULL AND expire_at < NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
