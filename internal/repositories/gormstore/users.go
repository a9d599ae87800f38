package gormstore

import (
	"context"

	"gorm.io/gorm"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// UserRepo is a GORM implementation of repositories.UserRepository.
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ repositories.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) FindUserByID(ctx context.Context, userID string) (models.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&rec).Error; err != nil {
		return models.User{}, errNotFound(err, repositories.ErrUserNotFound)
	}
	return rec.toModel(), nil
}

func (r *UserRepo) FindUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	var recs []userRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&recs).Error; err != nil {
		return nil, err
	}
	return toUsers(recs), nil
}

func (r *UserRepo) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&rec).Error; err != nil {
		return models.User{}, errNotFound(err, repositories.ErrUserNotFound)
	}
	return rec.toModel(), nil
}

func (r *UserRepo) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	var recs []userRecord
	if err := r.db.WithContext(ctx).Where("id <> ?", userID).Order("name ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toUsers(recs), nil
}

func (r *UserRepo) InsertUser(ctx context.Context, user models.User) error {
	rec := userRecord{ID: user.ID, Name: user.Name, Username: user.Username, PasswordHash: user.PasswordHash, Picture: user.Picture}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func toUsers(recs []userRecord) []models.User {
	users := make([]models.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toModel())
	}
	return users
}
