package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts user account persistence.
type UserRepository interface {
	FindUserByID(ctx context.Context, userID string) (models.User, error)
	FindUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsersExcept(ctx context.Context, userID string) ([]models.User, error)
	InsertUser(ctx context.Context, user models.User) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, name, username, password, picture`

func (r *UserRepo) FindUserByID(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepo) FindUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	users := []models.User{}
	if len(userIDs) == 0 {
		return users, nil
	}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(userIDs))
	return users, err
}

func (r *UserRepo) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsersExcept returns every user but the given one, ordered by name.
func (r *UserRepo) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id<>$1 ORDER BY name ASC, id ASC`, userID)
	return users, err
}

func (r *UserRepo) InsertUser(ctx context.Context, user models.User) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (:id, :name, :username, :password, :picture)`, user)
	return err
}
