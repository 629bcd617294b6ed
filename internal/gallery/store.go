package gallery

import (
	"context"

	"fluxgallery/internal/models"
	"fluxgallery/internal/repository"
)

// RepositoryStore adapts the Postgres image repository to the controller's
// Store contract for one bound user. Deletes carry the user id so ownership
// is still enforced in SQL even though the contract's delete is id-only.
type RepositoryStore struct {
	repo   *repository.ImageRepository
	userID string
}

var _ Store = (*RepositoryStore)(nil)

func NewRepositoryStore(repo *repository.ImageRepository, userID string) *RepositoryStore {
	return &RepositoryStore{repo: repo, userID: userID}
}

func (s *RepositoryStore) GetUserImages(ctx context.Context, userID string) ([]models.GalleryImage, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *RepositoryStore) DeleteUserImage(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id, s.userID)
}
