package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"quizflow/internal/config"
	"quizflow/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService handles ops logins and per-session quiz tokens
type AuthService struct {
	opsUsername string
	opsPassword string
	jwtSecret   []byte
	opsTTL      time.Duration
	sessionTTL  time.Duration
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(cfg config.AuthConfig) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &AuthService{
		opsUsername: cfg.OpsUser,
		opsPassword: cfg.OpsPass,
		jwtSecret:   []byte(cfg.JWTSecret),
		opsTTL:      cfg.OpsTTL,
		sessionTTL:  cfg.SessionTTL,
		now:         time.Now,
	}
}

// Login validates ops credentials and returns a token
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if username == "" || username != s.opsUsername || password != s.opsPassword {
		return nil, ErrInvalidCredentials
	}

	operatorID := "ops_" + uuid.New().String()[:8]
	now := s.now()

	claims := &model.OpsClaims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.opsTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.opsTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token:      tokenString,
		OperatorID: operatorID,
	}, nil
}

// ValidateOpsToken validates an ops JWT and returns claims
func (s *AuthService) ValidateOpsToken(tokenString string) (*model.OpsClaims, error) {
	claims := &model.OpsClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.OperatorID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueSessionToken creates a token scoped to one quiz session
func (s *AuthService) IssueSessionToken(sessionID, quizID string) (string, error) {
	now := s.now()
	claims := &model.SessionClaims{
		SessionID: sessionID,
		QuizID:    quizID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateSessionToken validates a session JWT and returns claims
func (s *AuthService) ValidateSessionToken(tokenString string) (*model.SessionClaims, error) {
	claims := &model.SessionClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
