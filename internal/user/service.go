package user

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/listenup/internal/domain"
	"github.com/victornm/listenup/internal/errors"
)

var validate = validator.New()

type Repository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, hash []byte) error
}

type Config struct {
	Repo Repository
	// Cost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	Cost int
}

type Service struct {
	repo Repository
	cost int
}

func NewService(c Config) *Service {
	s := &Service{
		repo: c.Repo,
		cost: c.Cost,
	}

	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}

	return s
}

type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	// bcrypt ignores everything past 72 bytes.
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Signup creates a user with no points and nothing consumed.
func (s *Service) Signup(ctx context.Context, req Credentials) (*domain.User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Username:     req.Username,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

// Login returns the user matching the credentials. Unknown usernames and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req Credentials) (*domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials()
	}

	return u, nil
}

type ChangePasswordRequest struct {
	UserID   int64  `json:"-"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, req.UserID, hash)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.GetUser(ctx, id)
}

func errInvalidCredentials() error {
	return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("invalid username or password"))
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid request: %v", err),
			errors.WithCause(err),
		)
	}
	return nil
}
