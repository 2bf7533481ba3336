package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/tournament-officiating/presence"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleJudge     Role = "judge"
	RoleOrganizer Role = "organizer"
)

const DefaultSessionTTL = 12 * time.Hour

// JudgeClaims are carried by every session token. A judge id is stable for the
// lifetime of the token, so a reconnecting device keeps its claims.
type JudgeClaims struct {
	JudgeID string `json:"judge_id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

func (c *JudgeClaims) Identity() presence.Identity {
	return presence.Identity{ID: c.JudgeID, Name: c.Name}
}

type LoginInput struct {
	Name     string `json:"name"`
	Passcode string `json:"passcode"`
}

type Session struct {
	Token     string            `json:"token"`
	Judge     presence.Identity `json:"judge"`
	Role      Role              `json:"role"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type AuthService interface {
	// Login exchanges a venue passcode for a session token. The organizer passcode grants
	// the organizer role, the venue passcode the judge role.
	Login(ctx context.Context, input LoginInput) (*Session, error)
	ParseToken(token string) (*JudgeClaims, error)
}

type AuthConfig struct {
	JWTSecret []byte
	// Bcrypt hashes of the passcodes. An empty hash disables that role.
	JudgePasscodeHash     string
	OrganizerPasscodeHash string
	SessionTTL            time.Duration
}

type authService struct {
	cfg AuthConfig
	now func() time.Time
}

func NewAuthService(cfg AuthConfig) AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &authService{cfg: cfg, now: time.Now}
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrDisplayNameRequired
	}
	if input.Passcode == "" {
		return nil, ErrInvalidPasscode
	}

	role, err := s.matchPasscode(input.Passcode)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.cfg.SessionTTL)
	claims := JudgeClaims{
		JudgeID: uuid.NewString(),
		Name:    name,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Session{Token: token, Judge: claims.Identity(), Role: role, ExpiresAt: expiresAt}, nil
}

func (s *authService) matchPasscode(passcode string) (Role, error) {
	candidates := []struct {
		role Role
		hash string
	}{
		{RoleOrganizer, s.cfg.OrganizerPasscodeHash},
		{RoleJudge, s.cfg.JudgePasscodeHash},
	}
	for _, c := range candidates {
		if c.hash == "" {
			continue
		}
		err := bcrypt.CompareHashAndPassword([]byte(c.hash), []byte(passcode))
		if err == nil {
			return c.role, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", fmt.Errorf("failed to compare passcode hash: %w", err)
		}
	}
	return "", ErrInvalidPasscode
}

func (s *authService) ParseToken(tokenString string) (*JudgeClaims, error) {
	claims := &JudgeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if claims.JudgeID == "" || (claims.Role != RoleJudge && claims.Role != RoleOrganizer) {
		return nil, fmt.Errorf("%w: incomplete claims", ErrAuthenticationFailed)
	}
	return claims, nil
}
