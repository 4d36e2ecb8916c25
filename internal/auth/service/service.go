// Package service verifies operator credentials and mints session tokens.
// There is a single admin account, configured by email and bcrypt hash; the
// archive's contributors authenticate with tokens minted out of band.
package service

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	jwttoken "hearth/internal/jwt_token"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/audit"
	"hearth/pkg/requestcontext"
)

const sessionTTL = 12 * time.Hour

// Auditor records login attempts; the security trail needs failures too.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	tokens       *jwttoken.JWTService
	adminEmail   string
	adminHash    string
	adminSubject uuid.UUID
	auditor      Auditor
	logger       *slog.Logger
}

func NewService(tokens *jwttoken.JWTService, adminEmail, adminPasswordHash string, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{
		tokens:     tokens,
		adminEmail: adminEmail,
		adminHash:  adminPasswordHash,
		// The admin identity is stable across restarts so audit rows from
		// different sessions correlate.
		adminSubject: uuid.NewSHA1(uuid.NameSpaceOID, []byte(adminEmail)),
		auditor:      auditor,
		logger:       logger,
	}
}

// Session is a minted token and its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Login verifies the credentials and mints an admin session token. Failures
// are uniform: the caller cannot tell a wrong email from a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if s.adminEmail == "" || s.adminHash == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	emailMatch := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	hashErr := bcrypt.CompareHashAndPassword([]byte(s.adminHash), []byte(password))
	if !emailMatch || hashErr != nil {
		s.logger.WarnContext(ctx, "admin login rejected",
			"request_id", requestcontext.RequestID(ctx))
		s.audit(ctx, "rejected")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.GenerateAccessToken(s.adminSubject, true, sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint session token")
	}

	s.audit(ctx, "granted")
	s.logger.InfoContext(ctx, "admin login",
		"request_id", requestcontext.RequestID(ctx))
	return &Session{
		Token:     token,
		ExpiresAt: requestcontext.Now(ctx).Add(sessionTTL),
	}, nil
}

func (s *Service) audit(ctx context.Context, outcome string) {
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    string(audit.ActionAdminLogin),
		ActorID:   "admin",
		Decision:  outcome,
		RequestID: requestcontext.RequestID(ctx),
		Device:    requestcontext.UserAgent(ctx),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to audit login", "error", err)
	}
}
