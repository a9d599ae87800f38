package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories/gormstore"
)

func newDirectory(t *testing.T) (*Directory, *gormstore.UserRepo) {
	t.Helper()
	db, err := gormstore.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repo := gormstore.NewUserRepo(db)
	return NewDirectory(repo, time.Millisecond, 100), repo
}

func newAccounts() *Accounts {
	return NewAccounts(auth.NewTokenManager("test-secret", time.Hour), nil)
}

func TestDirectoryBatchesLookups(t *testing.T) {
	repo := new(mocks.UserRepositoryMock)
	dir := NewDirectory(repo, 20*time.Millisecond, 100)
	ctx := context.Background()

	repo.On("FindUsersByIDs", mock.Anything, mock.MatchedBy(func(ids []string) bool { return len(ids) == 3 })).
		Return([]models.User{{ID: "u2", Name: "Two"}, {ID: "u1", Name: "One"}}, nil).Once()

	users, err := dir.FindManyByIDs(ctx, []string{"u1", "missing", "u2"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "u2", users[1].ID)

	user, err := dir.FindByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, user)
	repo.AssertExpectations(t)
}

func TestDirectoryPropagatesStoreErrors(t *testing.T) {
	repo := new(mocks.UserRepositoryMock)
	dir := NewDirectory(repo, time.Millisecond, 100)
	repo.On("FindUsersByIDs", mock.Anything, []string{"u1"}).Return(nil, errors.New("db down")).Once()

	_, err := dir.FindByID(context.Background(), "u1")
	require.Error(t, err)
}

func TestSignUpAndSignIn(t *testing.T) {
	dir, _ := newDirectory(t)
	accounts := newAccounts()

	var written string
	ctx := auth.WithSessionWriter(context.Background(), func(token string, ttl time.Duration) {
		written = token
		assert.Equal(t, time.Hour, ttl)
	})

	user, err := accounts.SignUp(ctx, dir, SignUpInput{Name: "Ethan Gonzalez", Username: "Ethan", Password: "password1", PasswordConfirm: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "ethan", user.Username)
	assert.Equal(t, DefaultPicture, user.Picture)
	assert.NotEqual(t, "password1", user.PasswordHash)

	_, err = accounts.SignUp(ctx, dir, SignUpInput{Name: "Other", Username: "ETHAN", Password: "password1", PasswordConfirm: "password1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	signedIn, token, err := accounts.SignIn(ctx, dir, " ethan ", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)
	assert.Equal(t, token, written)

	_, _, err = accounts.SignIn(ctx, dir, "ethan", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = accounts.SignIn(ctx, dir, "nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpValidation(t *testing.T) {
	dir, _ := newDirectory(t)
	accounts := newAccounts()
	ctx := context.Background()

	cases := []struct {
		name  string
		in    SignUpInput
		field string
	}{
		{"short name", SignUpInput{Name: "Al", Username: "alice", Password: "password1", PasswordConfirm: "password1"}, "name"},
		{"long username", SignUpInput{Name: "Alice", Username: "a-very-long-username-indeed", Password: "password1", PasswordConfirm: "password1"}, "username"},
		{"short password", SignUpInput{Name: "Alice", Username: "alice", Password: "short", PasswordConfirm: "short"}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := accounts.SignUp(ctx, dir, tc.in)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	_, err := accounts.SignUp(ctx, dir, SignUpInput{Name: "Alice", Username: "alice", Password: "password1", PasswordConfirm: "password2"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestCurrentUser(t *testing.T) {
	dir, repo := newDirectory(t)
	accounts := newAccounts()
	require.NoError(t, repo.InsertUser(context.Background(), models.User{ID: "u1", Name: "Ray", Username: "ray", PasswordHash: "x"}))

	user, err := accounts.CurrentUser(context.Background(), dir)
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = accounts.CurrentUser(auth.WithUserID(context.Background(), "u1"), dir)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ray", user.Username)
}

func TestFindAllExcept(t *testing.T) {
	dir, repo := newDirectory(t)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		require.NoError(t, repo.InsertUser(ctx, models.User{ID: id, Name: id, Username: id, PasswordHash: "x"}))
	}

	users, err := dir.FindAllExcept(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, "u2", u.ID)
	}
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "ethan", NormalizeUsername("  ETHAN "))
	assert.Equal(t, "ethan", NormalizeUsername("Ｅｔｈａｎ"))
}
