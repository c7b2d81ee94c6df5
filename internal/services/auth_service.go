package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/policy"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/utils"
	"github.com/yukikurage/taskboard/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrNotPermitted         = policy.ErrNotPermitted
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate auth token")
)

const msgTaken = "has already been taken"

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo    repository.UserRepository
	tokenSource utils.TokenSource
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithTokenSource replaces the random token draw.
func WithTokenSource(source utils.TokenSource) AuthOption {
	return func(s *AuthService) {
		s.tokenSource = source
	}
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:    userRepo,
		tokenSource: utils.RandomURLSafeToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupInput represents the required information to create a new user.
type SignupInput struct {
	Email                string `json:"email" validate:"required,email"`
	Name                 string `json:"name" validate:"required,min=3,max=30"`
	Password             string `json:"password" validate:"required,min=4,max=20"`
	PasswordConfirmation string `json:"password_confirmation" validate:"omitempty,eqfield=Password"`
}

// Signup creates a new user with a fresh auth token. actor may be nil;
// anyone may sign up.
func (s *AuthService) Signup(actor *models.User, input SignupInput) (*models.User, error) {
	if err := policy.Authorize(policy.ForUser(actor, nil), policy.ActionCreate); err != nil {
		return nil, err
	}

	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	errs := validation.Struct(input)
	if err := checkUnique(s.userRepo, errs, input.Email, input.Name, 0); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	// The token check and the insert are not atomic, so a token drawn by a
	// concurrent signup can still hit the unique index. Redraw in that case.
	for attempt := 0; attempt < constants.MaxTokenInsertRetry; attempt++ {
		token, err := utils.GenerateUniqueToken(s.tokenSource, s.userRepo.TokenExists)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
		}

		user := &models.User{
			Email:          input.Email,
			Name:           input.Name,
			PasswordDigest: string(digest),
			AuthToken:      token,
		}

		err = s.userRepo.Create(user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		// Email or name lost a race with another signup.
		raced := validation.Errors{}
		if err := checkUnique(s.userRepo, raced, input.Email, input.Name, 0); err != nil {
			return nil, err
		}
		if err := raced.Err(); err != nil {
			return nil, err
		}

		zap.L().Warn("auth token collided on insert, retrying", zap.Int("attempt", attempt+1))
	}

	return nil, ErrTokenGeneration
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and returns the authenticated user.
func (s *AuthService) Login(input LoginInput) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// ResolveActor returns the user holding token, or nil for an empty or
// unknown token.
func (s *AuthService) ResolveActor(token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	user, err := s.userRepo.FindByAuthToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve auth token: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkUnique records a taken message for email and name. Fields that
// already failed validation are not queried.
func checkUnique(repo repository.UserRepository, errs validation.Errors, email, name string, exceptID uint64) error {
	if !errs.Has(policy.FieldEmail) && email != "" {
		taken, err := repo.EmailTaken(email, exceptID)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			errs.Add(policy.FieldEmail, msgTaken)
		}
	}
	if !errs.Has(policy.FieldName) && name != "" {
		taken, err := repo.NameTaken(name, exceptID)
		if err != nil {
			return fmt.Errorf("failed to check name: %w", err)
		}
		if taken {
			errs.Add(policy.FieldName, msgTaken)
		}
	}
	return nil
}
