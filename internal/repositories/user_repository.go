package repositories

import (
	"context"

	"github.com/socialhub/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	// FindManyByIDs returns the users that exist among ids, in the order of ids.
	FindManyByIDs(ctx context.Context, ids []string) ([]models.User, error)
}
