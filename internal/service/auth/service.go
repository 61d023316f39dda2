package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultSessionTTL = 24 * time.Hour
	tokenBytes        = 32
)

// Result — итог регистрации или входа: токен и данные пользователя.
type Result struct {
	Token     string
	ExpiresAt time.Time
	User      domain.UserSummary
}

// ServiceOptions задаёт параметры сервиса аутентификации.
type ServiceOptions struct {
	Logger     *log.Entry
	SessionTTL time.Duration
	BcryptCost int
}

// Option настраивает Service.
type Option func(*ServiceOptions)

// WithLogger задаёт logger для сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *ServiceOptions) {
		opts.Logger = logger
	}
}

// WithSessionTTL задаёт время жизни токена.
func WithSessionTTL(ttl time.Duration) Option {
	return func(opts *ServiceOptions) {
		opts.SessionTTL = ttl
	}
}

// WithBcryptCost задаёт стоимость хеширования паролей.
func WithBcryptCost(cost int) Option {
	return func(opts *ServiceOptions) {
		opts.BcryptCost = cost
	}
}

// Service регистрирует пользователей, выдаёт и проверяет токены доступа.
type Service struct {
	users      domain.UserRepository
	sessions   domain.SessionStore
	logger     *log.Entry
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewService создаёт сервис аутентификации.
func NewService(users domain.UserRepository, sessions domain.SessionStore, options ...Option) *Service {
	opts := ServiceOptions{
		SessionTTL: defaultSessionTTL,
		BcryptCost: bcrypt.DefaultCost,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "auth")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	return &Service{
		users:      users,
		sessions:   sessions,
		logger:     logger,
		sessionTTL: opts.SessionTTL,
		bcryptCost: opts.BcryptCost,
		now:        time.Now,
	}
}

// Signup регистрирует покупателя и сразу выдаёт токен.
func (s *Service) Signup(ctx context.Context, name, email, password string) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, domain.ErrNameRequired
	}
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return Result{}, err
	}
	if len(password) < domain.MinPasswordLength {
		return Result{}, domain.ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return Result{}, err
	}

	s.logger.WithField("user_id", user.ID).Info("user signed up")
	return s.issue(ctx, user)
}

// EnsureAdmin гарантирует наличие администратора с указанным email:
// создаёт учётную запись или повышает роль существующей.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (domain.UserSummary, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return domain.UserSummary{}, err
	}

	existing, err := s.users.GetByEmail(ctx, normalized)
	switch {
	case err == nil:
		if existing.Role == domain.RoleAdmin {
			return existing.Summary(), nil
		}
		return s.UpdateRole(ctx, existing.ID, string(domain.RoleAdmin))
	case !errors.Is(err, domain.ErrUserNotFound):
		return domain.UserSummary{}, err
	}

	result, err := s.Signup(ctx, name, normalized, password)
	if err != nil {
		return domain.UserSummary{}, err
	}
	if err := s.sessions.Delete(ctx, result.Token); err != nil {
		return domain.UserSummary{}, fmt.Errorf("revoke bootstrap session: %w", err)
	}
	return s.UpdateRole(ctx, result.User.ID, string(domain.RoleAdmin))
}

// Login проверяет пароль и выдаёт новый токен.
func (s *Service) Login(ctx context.Context, email, password string) (Result, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return Result{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return Result{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Result{}, domain.ErrInvalidCredentials
		}
		return Result{}, fmt.Errorf("compare password: %w", err)
	}

	return s.issue(ctx, user)
}

// UpdateRole меняет роль пользователя. Действует на уже выданные токены.
func (s *Service) UpdateRole(ctx context.Context, userID, rawRole string) (domain.UserSummary, error) {
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.UserSummary{}, err
	}

	user, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return domain.UserSummary{}, err
	}

	s.logger.WithFields(log.Fields{
		"user_id": userID,
		"role":    role,
	}).Info("user role updated")
	return user.Summary(), nil
}

// Authenticate разрешает токен в вызывающего. Роль читается из учётной записи.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Caller{}, domain.ErrUnauthorized
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Caller{}, domain.ErrUnauthorized
		}
		return domain.Caller{}, err
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Caller{}, domain.ErrUnauthorized
		}
		return domain.Caller{}, err
	}

	return domain.Caller{UserID: user.ID, Role: user.Role}, nil
}

// Logout отзывает токен.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, strings.TrimSpace(token))
}

func (s *Service) issue(ctx context.Context, user domain.User) (Result, error) {
	token, err := newToken()
	if err != nil {
		return Result{}, err
	}

	session := domain.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: s.now().UTC().Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return Result{}, fmt.Errorf("save session: %w", err)
	}

	return Result{Token: token, ExpiresAt: session.ExpiresAt, User: user.Summary()}, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
