package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/telemetry"
)

var (
	ErrInvalidCredentials = errors.New("user or password not correct")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrPasswordMismatch   = errors.New("password and passwordConfirm don't match")
)

// ValidationError reports a field outside its allowed length.
type ValidationError struct {
	Field    string
	Min, Max int
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d characters", e.Field, e.Min, e.Max)
}

// Accounts implements sign-in, sign-up and current-user resolution.
type Accounts struct {
	tokens *auth.TokenManager
	audit  *telemetry.AuditEmitter
}

// NewAccounts wires the account operations. audit may be nil.
func NewAccounts(tokens *auth.TokenManager, audit *telemetry.AuditEmitter) *Accounts {
	return &Accounts{tokens: tokens, audit: audit}
}

// NormalizeUsername trims, applies NFKC and case-folds a username.
func NormalizeUsername(username string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(username)))
}

// SignIn verifies the credentials, issues a session token and stores it
// through the session writer in ctx. The token is also returned for callers
// without cookie support.
func (a *Accounts) SignIn(ctx context.Context, dir *Directory, username, password string) (*models.User, string, error) {
	user, err := dir.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	auth.WriteSession(ctx, token, a.tokens.TTL())
	a.emit(ctx, "signed in", user.ID)
	return user, token, nil
}

// SignUpInput carries the sign-up form.
type SignUpInput struct {
	Name            string
	Username        string
	Password        string
	PasswordConfirm string
}

// SignUp validates the form and creates the account.
func (a *Accounts) SignUp(ctx context.Context, dir *Directory, in SignUpInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	username := NormalizeUsername(in.Username)

	if err := validateLength("name", name, 3, 50); err != nil {
		return nil, err
	}
	if err := validateLength("username", username, 3, 18); err != nil {
		return nil, err
	}
	if err := validateLength("password", in.Password, 8, 30); err != nil {
		return nil, err
	}
	if in.Password != in.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	existing, err := dir.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	user, err := dir.NewUser(ctx, NewUserInput{Name: name, Username: username, Password: in.Password})
	if err != nil {
		return nil, err
	}
	a.emit(ctx, "signed up", user.ID)
	return &user, nil
}

// CurrentUser resolves the identity in ctx to a user record, or nil.
func (a *Accounts) CurrentUser(ctx context.Context, dir *Directory) (*models.User, error) {
	userID, ok := auth.UserIDFrom(ctx)
	if !ok {
		return nil, nil
	}
	return dir.FindByID(ctx, userID)
}

func (a *Accounts) emit(ctx context.Context, text, userID string) {
	zerolog.Ctx(ctx).Info().Str("user_id", userID).Msg(text)
	a.audit.Emit(ctx, "INFO", text, observability.RequestIDFromContext(ctx), &userID)
}

func validateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return ValidationError{Field: field, Min: min, Max: max}
	}
	return nil
}
