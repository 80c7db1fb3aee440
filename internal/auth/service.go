// Package auth implements phone-number verification over SMS one-time
// codes and the session tokens issued after a successful verification.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/starbrewcrew/brewfinder/internal/cache"
	"github.com/starbrewcrew/brewfinder/internal/domain"
)

const (
	// codeTTL is how long a verification code stays valid.
	codeTTL = 600 * time.Second

	// tokenLifetime is the session token validity window.
	tokenLifetime = 30 * 24 * time.Hour

	tokenType = "sms-auth"
)

var phoneE164 = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// CodeSender delivers a one-time code to a phone number.
type CodeSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Service manages verification challenges. Codes live in the shared
// cache store under "verify:{phone}" and are single-use: verification
// deletes the entry.
type Service struct {
	sender CodeSender
	store  cache.Store
	secret []byte
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewService wires the verification flow.
func NewService(sender CodeSender, store cache.Store, secret []byte, logger *slog.Logger) *Service {
	return &Service{
		sender: sender,
		store:  store,
		secret: secret,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
}

// RequestCode generates a 6-digit code, stores it with a 10-minute TTL,
// and sends it by SMS.
func (s *Service) RequestCode(ctx context.Context, phone string) error {
	if !phoneE164.MatchString(phone) {
		return domain.Validationf("invalid phone number format, use E.164 (e.g. +12345678900)")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	if err := s.store.Set(ctx, codeKey(phone), []byte(code), codeTTL); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	if err := s.sender.SendSMS(ctx, phone, "Your verification code is: "+code); err != nil {
		s.logger.Error("verification sms failed", "error", err)
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// VerifyCode checks a submitted code and, on success, deletes it and
// issues a session token. Wrong or expired codes return ErrNotFound.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (string, error) {
	if !phoneE164.MatchString(phone) || code == "" {
		return "", domain.Validationf("phone number and verification code are required")
	}

	stored, found, err := s.store.Get(ctx, codeKey(phone))
	if err != nil {
		return "", fmt.Errorf("load verification code: %w", err)
	}
	if !found || string(stored) != code {
		return "", fmt.Errorf("verification code for %s: %w", phone, domain.ErrNotFound)
	}

	if err := s.store.Delete(ctx, codeKey(phone)); err != nil {
		// The code already matched; a failed delete only weakens
		// single-use, so log and continue.
		s.logger.Warn("verification code delete failed", "error", err)
	}

	return s.issueToken(phone)
}

// Claims is the session token payload.
type Claims struct {
	PhoneNumber string `json:"phoneNumber"`
	TokenType   string `json:"type"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(phone string) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		PhoneNumber: phone,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a session token, returning the
// phone number it was issued for.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	if claims.TokenType != tokenType {
		return "", fmt.Errorf("invalid session token: wrong token type")
	}
	return claims.PhoneNumber, nil
}

func codeKey(phone string) string {
	return "verify:" + phone
}

// generateCode produces a uniformly random 6-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
