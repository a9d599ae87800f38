// Package users resolves user records for the graph and handles account
// sign-in and sign-up.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// DefaultPicture is assigned to accounts created through sign-up.
const DefaultPicture = "https://raw.githubusercontent.com/Urigo/WhatsApp-Clone-Client-React/legacy/public/assets/default-profile-pic.jpg"

// Directory looks up users for one request. Lookups by id issued within the
// same batching window share a single store query.
type Directory struct {
	repo   repositories.UserRepository
	loader *dataloader.Loader[string, *models.User]
}

// NewDirectory builds a request-scoped directory.
func NewDirectory(repo repositories.UserRepository, wait time.Duration, maxBatch int) *Directory {
	d := &Directory{repo: repo}
	d.loader = dataloader.NewBatchedLoader(d.batchUsers,
		dataloader.WithWait[string, *models.User](wait),
		dataloader.WithBatchCapacity[string, *models.User](maxBatch),
	)
	return d
}

func (d *Directory) batchUsers(ctx context.Context, ids []string) []*dataloader.Result[*models.User] {
	observability.ObserveLoaderBatch("users", len(ids))
	results := make([]*dataloader.Result[*models.User], len(ids))

	found, err := d.repo.FindUsersByIDs(ctx, ids)
	if err != nil {
		for i := range results {
			results[i] = &dataloader.Result[*models.User]{Error: fmt.Errorf("find users: %w", err)}
		}
		return results
	}

	byID := make(map[string]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	for i, id := range ids {
		if u, ok := byID[id]; ok {
			results[i] = &dataloader.Result[*models.User]{Data: &u}
		} else {
			results[i] = &dataloader.Result[*models.User]{}
		}
	}
	return results
}

// FindByID returns the user or nil when no such user exists.
func (d *Directory) FindByID(ctx context.Context, userID string) (*models.User, error) {
	return d.loader.Load(ctx, userID)()
}

// FindManyByIDs resolves ids in order, skipping ids without a user record.
func (d *Directory) FindManyByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	found, errs := d.loader.LoadMany(ctx, userIDs)()
	users := make([]models.User, 0, len(found))
	for i, u := range found {
		if len(errs) > i && errs[i] != nil {
			return nil, errs[i]
		}
		if u != nil {
			users = append(users, *u)
		}
	}
	return users, nil
}

// FindAllExcept lists every user but userID.
func (d *Directory) FindAllExcept(ctx context.Context, userID string) ([]models.User, error) {
	return d.repo.ListUsersExcept(ctx, userID)
}

// FindByUsername returns the user or nil when the username is unknown.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := d.repo.FindUserByUsername(ctx, username)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// NewUserInput carries the fields of a new account.
type NewUserInput struct {
	Name     string
	Username string
	Password string
}

// NewUser hashes the password and stores a user with the default picture.
func (d *Directory) NewUser(ctx context.Context, in NewUserInput) (models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: hash,
		Picture:      DefaultPicture,
	}
	if err := d.repo.InsertUser(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	d.loader.Prime(ctx, user.ID, &user)
	return user, nil
}
