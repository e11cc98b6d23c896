package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/repos"
)

// Claims is the JWT payload: {user_id, username, exp}.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Service interface {
	Register(ctx context.Context, username, password string) (token string, user *domain.User, err error)
	Login(ctx context.Context, username, password string) (token string, user *domain.User, err error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	ParseToken(tokenString string) (*Claims, error)
}

type service struct {
	log       *logger.Logger
	userRepo  repos.UserRepo
	jwtSecret string
	tokenTTL  time.Duration
}

func NewService(log *logger.Logger, userRepo repos.UserRepo, jwtSecret string) (Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repo required")
	}
	jwtSecret = strings.TrimSpace(jwtSecret)
	if jwtSecret == "" {
		return nil, fmt.Errorf("missing jwt_secret")
	}
	return &service{
		log:       log.With("service", "AuthService"),
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  24 * time.Hour,
	}, nil
}

var ErrUsernameTaken = fmt.Errorf("username already exists")
var ErrInvalidCredentials = fmt.Errorf("invalid credentials")

func (s *service) Register(ctx context.Context, username, password string) (string, *domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, fmt.Errorf("username and password required")
	}

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.userRepo.GetByUsername(dbc, username)
	if err != nil {
		return "", nil, fmt.Errorf("lookup username: %w", err)
	}
	if existing != nil {
		return "", nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.userRepo.Create(dbc, user); err != nil {
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	dbc := dbctx.Context{Ctx: ctx}
	user, err := s.userRepo.GetByUsername(dbc, strings.TrimSpace(username))
	if err != nil {
		return "", nil, fmt.Errorf("lookup username: %w", err)
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *service) Me(ctx context.Context, userID string) (*domain.User, error) {
	dbc := dbctx.Context{Ctx: ctx}
	user, err := s.userRepo.GetByID(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *service) generateToken(user *domain.User) (string, error) {
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *service) ParseToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("empty token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing user_id claim")
	}
	return claims, nil
}
