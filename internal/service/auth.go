package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrAccountDisabled    = errors.New("account disabled")
)

// ValidationError reports which input fields failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, rule := range e.Fields {
		parts = append(parts, f+": "+rule)
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

// AuthConfig configures an AuthService.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	Logger     *slog.Logger
}

// AuthService registers accounts, verifies passwords and issues and validates
// bearer tokens.
type AuthService struct {
	store      *config.Store
	jwtSecret  []byte
	ttl        time.Duration
	bcryptCost int
	logger     *slog.Logger
	validate   *validator.Validate
}

func NewAuthService(store *config.Store, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthService{
		store:      store,
		jwtSecret:  []byte(cfg.JWTSecret),
		ttl:        cfg.TokenTTL,
		bcryptCost: cfg.BcryptCost,
		logger:     cfg.Logger,
		validate:   validator.New(),
	}
}

// TokenTTL returns the lifetime of issued tokens.
func (s *AuthService) TokenTTL() time.Duration { return s.ttl }

// RegisterInput is a new account request.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=80"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"omitempty,email,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	RealName string `json:"real_name" validate:"max=120"`
}

// Register creates a self-service account with the default user role and
// credits the signup bonus. Self-service signups must provide a phone number.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if strings.TrimSpace(in.Phone) == "" {
		fields := map[string]string{"phone": "required"}
		var ve *ValidationError
		if err := s.validate.Struct(in); errors.As(toValidationError(err), &ve) {
			for f, rule := range ve.Fields {
				fields[f] = rule
			}
		}
		return nil, &ValidationError{Fields: fields}
	}
	return s.CreateUser(ctx, in, authz.RoleUser)
}

// CreateUser creates an account with an explicit role. It backs Register and
// operator tooling that provisions admins or merchants directly.
func (s *AuthService) CreateUser(ctx context.Context, in RegisterInput, role authz.Role) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", authz.ErrUnknownRole, string(role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     in.Username,
		Email:        optional(in.Email),
		Phone:        optional(in.Phone),
		RealName:     strings.TrimSpace(in.RealName),
		PasswordHash: string(hash),
		Role:         role,
		CreditPoints: model.SignupBonus,
		IsVerified:   true,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username, "role", string(u.Role))
	return u, nil
}

// Login verifies a username and password and returns the account with a
// freshly issued token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, "", ErrAccountDisabled
	}

	token, err := s.IssueJWT(ctx, u, s.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	if err := s.store.UpdateLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn("failed to record login", "user_id", u.ID, "error", err)
	}
	return u, token, nil
}

// ValidateJWT verifies a bearer token and resolves the caller's current
// authorization identity. The role comes from the store, so a role change
// applies to tokens issued before it.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*authz.User, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidCredentials
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidCredentials
	}

	u, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	if !u.Role.Valid() {
		// Unknown roles hold no permissions; surface them for operators.
		s.logger.Warn("unrecognized role on account", "user_id", u.ID, "role", string(u.Role))
	}
	return u.Principal(), nil
}

// IssueJWT creates a new signed token for u.
func (s *AuthService) IssueJWT(ctx context.Context, u *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "neighborly",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

type jwtClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return ve
}
