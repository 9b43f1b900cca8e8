// Package auth signs readers in with Google or email and password and keeps
// their user document current.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/markbates/goth"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/models"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

type credentials struct {
	UserID       string `firestore:"userId"`
	PasswordHash string `firestore:"passwordHash"`
}

type Service struct {
	client collection.Client
	logger logger.Logger
	now    func() time.Time
}

func NewService(client collection.Client, logger logger.Logger) *Service {
	return &Service{client: client, logger: logger, now: time.Now}
}

func credentialsPath(email string) string {
	return collection.Join("credentials", normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) credentials(ctx context.Context, email string) (*credentials, error) {
	doc, err := s.client.Get(ctx, credentialsPath(email))
	if err != nil {
		return nil, err
	}
	var c credentials
	if err := doc.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Register(ctx context.Context, email, displayName, password string) (*models.User, error) {
	existing, err := s.credentials(ctx, email)
	if err != nil && !errors.Is(err, collection.ErrNotFound) {
		return nil, fmt.Errorf("error checking credentials: %w", err)
	}
	// Google-only accounts own their email even without a password.
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()

	if err := s.client.Set(ctx, credentialsPath(email), map[string]any{"userId": id, "passwordHash": hash}); err != nil {
		return nil, fmt.Errorf("error saving credentials: %w", err)
	}

	return s.UpsertUser(ctx, models.User{ID: id, Email: normalizeEmail(email), DisplayName: displayName})
}

func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	c, err := s.credentials(ctx, email)
	if errors.Is(err, collection.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("error checking credentials: %w", err)
	}
	if c.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePassword(password, c.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.GetUser(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	return s.UpsertUser(ctx, *user)
}

// GoogleSignIn links the Google account to an existing user with the same
// email, or creates one.
func (s *Service) GoogleSignIn(ctx context.Context, gu goth.User) (*models.User, error) {
	if gu.Email == "" {
		return nil, fmt.Errorf("%w: google account has no email", ErrInvalidCredentials)
	}

	c, err := s.credentials(ctx, gu.Email)
	if err != nil && !errors.Is(err, collection.ErrNotFound) {
		return nil, fmt.Errorf("error checking credentials: %w", err)
	}

	id := ""
	if c != nil {
		id = c.UserID
	} else {
		id = uuid.NewString()
		if err := s.client.Set(ctx, credentialsPath(gu.Email), map[string]any{"userId": id, "passwordHash": ""}); err != nil {
			return nil, fmt.Errorf("error saving credentials: %w", err)
		}
	}

	name := gu.Name
	if name == "" {
		name = strings.TrimSpace(gu.FirstName + " " + gu.LastName)
	}

	return s.UpsertUser(ctx, models.User{ID: id, Email: normalizeEmail(gu.Email), DisplayName: name, PhotoURL: gu.AvatarURL})
}

// UpsertUser writes the profile with lastLogin set to now. It runs on every
// successful authentication.
func (s *Service) UpsertUser(ctx context.Context, user models.User) (*models.User, error) {
	user.LastLogin = s.now().UTC()

	fields := map[string]any{
		"email":     user.Email,
		"lastLogin": user.LastLogin,
	}
	if user.DisplayName != "" {
		fields["displayName"] = user.DisplayName
	}
	if user.PhotoURL != "" {
		fields["photoURL"] = user.PhotoURL
	}

	if err := s.client.Update(ctx, collection.Join("users", user.ID), fields); err != nil {
		return nil, fmt.Errorf("error saving user: %w", err)
	}

	s.logger.Info("user signed in", "service", "AuthService", "user", user.ID)
	return &user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	doc, err := s.client.Get(ctx, collection.Join("users", id))
	if errors.Is(err, collection.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	var user models.User
	if err := doc.Decode(&user); err != nil {
		return nil, err
	}
	user.ID = doc.ID
	return &user, nil
}
