package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"grievance/internal/auth/models"
	"grievance/internal/auth/store/pending"
	refreshtoken "grievance/internal/auth/store/refresh-token"
	"grievance/internal/auth/store/revocation"
	"grievance/internal/auth/store/user"
	jwttoken "grievance/internal/jwt_token"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
)

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, role id.Role, entityID *id.EntityID, expiresIn time.Duration) (*jwttoken.AccessToken, error)
}

// VerificationSender delivers the six digit registration code.
type VerificationSender interface {
	SendVerificationCode(ctx context.Context, email, name, code string, expiresIn time.Duration) error
}

type PushSender interface {
	Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Metrics interface {
	IncrementUsersRegistered()
	IncrementLoginFailures()
}

type Config struct {
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
}

const (
	defaultAccessTTL       = 60 * time.Minute
	defaultRefreshTTL      = 14 * 24 * time.Hour
	defaultVerificationTTL = 60 * time.Minute
)

// Service implements registration, login and token lifecycle for every role.
type Service struct {
	users          user.Store
	pending        pending.Store
	refreshTokens  refreshtoken.Store
	revocations    revocation.List
	tokens         TokenIssuer
	sender         VerificationSender
	push           PushSender
	cfg            Config
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher records authentication events.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPushSender enables SendTestPush.
func WithPushSender(p PushSender) Option {
	return func(s *Service) {
		s.push = p
	}
}

// New wires the account and token stores. Options default to no-op
// collaborators.
func New(
	users user.Store,
	pendingStore pending.Store,
	refreshTokens refreshtoken.Store,
	revocations revocation.List,
	tokens TokenIssuer,
	sender VerificationSender,
	cfg Config,
	opts ...Option,
) (*Service, error) {
	switch {
	case users == nil:
		return nil, errors.New("user store is required")
	case pendingStore == nil:
		return nil, errors.New("pending registration store is required")
	case refreshTokens == nil:
		return nil, errors.New("refresh token store is required")
	case revocations == nil:
		return nil, errors.New("revocation list is required")
	case tokens == nil:
		return nil, errors.New("token issuer is required")
	case sender == nil:
		return nil, errors.New("verification sender is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = defaultVerificationTTL
	}
	s := &Service{
		users:         users,
		pending:       pendingStore,
		refreshTokens: refreshTokens,
		revocations:   revocations,
		tokens:        tokens,
		sender:        sender,
		cfg:           cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tx == nil {
		s.tx = tx.NewInMemory()
	}
	return s, nil
}

// AuthResult is returned by verification and login.
type AuthResult struct {
	User   *models.User
	Tokens models.TokenPair
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, subject string) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.FromContext(ctx, event, subject)); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event),
			"error", err,
		)
	}
}

func (s *Service) incrementLoginFailures() {
	if s.metrics != nil {
		s.metrics.IncrementLoginFailures()
	}
}

func wrapUserErr(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "this email is already registered")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "user store failure")
	}
}
