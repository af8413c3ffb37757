package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken      = errors.New("token is invalid")
	ErrTokenTypeMismatch = errors.New("token type mismatch")
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

type Claims struct {
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Subject: кому и каким токеном выдан доступ.
type Subject struct {
	UserID  uuid.UUID
	TokenID uuid.UUID
}

// Issued: подписанный токен и момент его истечения.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// TokenPair: результат входа. RefreshID совпадает с jti refresh-токена
// и служит ключом записи в refresh_tokens.
type TokenPair struct {
	Access    Issued
	Refresh   Issued
	RefreshID uuid.UUID
}

type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager инициализирует менеджер JWT токенов (HS256).
func NewTokenManager(secret string, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// NewTokenPair выпускает access- и refresh-токены для покупателя.
func (m *TokenManager) NewTokenPair(userID uuid.UUID) (TokenPair, error) {
	pair := TokenPair{RefreshID: uuid.New()}

	var err error
	if pair.Access, err = m.sign(userID, uuid.New(), TokenTypeAccess, m.accessTTL); err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	if pair.Refresh, err = m.sign(userID, pair.RefreshID, TokenTypeRefresh, m.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return pair, nil
}

// ParseAccessToken валидирует access-токен.
func (m *TokenManager) ParseAccessToken(tokenString string) (Subject, error) {
	return m.parse(tokenString, TokenTypeAccess)
}

// ParseRefreshToken валидирует refresh-токен.
func (m *TokenManager) ParseRefreshToken(tokenString string) (Subject, error) {
	return m.parse(tokenString, TokenTypeRefresh)
}

func (m *TokenManager) sign(userID, tokenID uuid.UUID, tokenType TokenType, ttl time.Duration) (Issued, error) {
	now := m.now()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID.String(),
			ID:        tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ExpiresAt: expiresAt}, nil
}

func (m *TokenManager) parse(tokenString string, tokenType TokenType) (Subject, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.TokenType != tokenType {
		return Subject{}, ErrTokenTypeMismatch
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Subject{}, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return Subject{}, fmt.Errorf("%w: jti: %w", ErrInvalidToken, err)
	}

	return Subject{UserID: userID, TokenID: tokenID}, nil
}
