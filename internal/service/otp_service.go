package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/internal/repository"
	"github.com/noah-isme/admission-portal-api/pkg/config"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
)

type otpStore interface {
	Get(ctx context.Context, applicationID string, channel models.OTPChannel) (*models.OTPChallenge, error)
	Save(ctx context.Context, challenge *models.OTPChallenge, ttl time.Duration) error
	Delete(ctx context.Context, applicationID string, channel models.OTPChannel) error
	RecordAttempt(ctx context.Context, applicationID string, channel models.OTPChannel, ttl time.Duration) (int, error)
}

type contactVerifier interface {
	GetByID(ctx context.Context, id string) (*models.Application, error)
	MarkContactVerified(ctx context.Context, app *models.Application, channel models.OTPChannel) error
}

type otpSender interface {
	SendOTP(ctx context.Context, channel models.OTPChannel, target, code string, ttl time.Duration) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// OTPService gates contact fields behind a one-time code.
type OTPService struct {
	store     otpStore
	apps      contactVerifier
	sender    otpSender
	audit     auditWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	policy    config.OTPConfig
	now       func() time.Time
}

// NewOTPService constructs the service, filling policy defaults.
func NewOTPService(store otpStore, apps contactVerifier, sender otpSender, audit auditWriter, metrics *MetricsService, logger *zap.Logger, policy config.OTPConfig) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.TTL <= 0 {
		policy.TTL = 10 * time.Minute
	}
	if policy.ResendCooldown < 0 {
		policy.ResendCooldown = 0
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if policy.CodeLength <= 0 {
		policy.CodeLength = 6
	}
	return &OTPService{
		store:     store,
		apps:      apps,
		sender:    sender,
		audit:     audit,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func contactOf(app *models.Application, channel models.OTPChannel) (string, bool) {
	if channel == models.OTPChannelMobile {
		return app.MobileNumber, app.MobileVerified
	}
	return app.Email, app.EmailVerified
}

func editable(app *models.Application, channel models.OTPChannel) bool {
	_, verified := contactOf(app, channel)
	if verified {
		return false
	}
	return channel != models.OTPChannelMobile || !app.FormStatus.Submitted()
}

// Send issues a new code for the channel's current value.
func (s *OTPService) Send(ctx context.Context, session *models.Session, applicationID string, channel models.OTPChannel) (*models.OTPStatus, error) {
	app, err := loadOwnedApplication(ctx, s.apps, session, applicationID)
	if err != nil {
		return nil, err
	}
	target, verified := contactOf(app, channel)
	if verified {
		return nil, appErrors.ErrOTPVerified
	}
	if strings.TrimSpace(target) == "" {
		return nil, appErrors.ErrOTPNoContact
	}
	if err := s.checkTarget(channel, target); err != nil {
		return nil, err
	}

	now := s.now()
	existing, err := s.store.Get(ctx, app.ID, channel)
	switch {
	case err == nil:
		if resendAfter := existing.ResendAfter(s.policy.ResendCooldown); now.Before(resendAfter) {
			return nil, appErrors.WithDetails(appErrors.ErrOTPCooldown, map[string]interface{}{"resendAfter": resendAfter})
		}
	case errors.Is(err, appErrors.ErrCacheMiss):
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification state")
	}
	if err := s.store.Delete(ctx, app.ID, channel); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset verification state")
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash code")
	}

	challenge := &models.OTPChallenge{
		ApplicationID: app.ID,
		Channel:       channel,
		Target:        target,
		State:         models.OTPStateSent,
		CodeHash:      string(hash),
		SentAt:        now,
		ExpiresAt:     now.Add(s.policy.TTL),
	}
	if err := s.store.Save(ctx, challenge, s.policy.TTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store verification code")
	}
	if err := s.sender.SendOTP(ctx, channel, target, code, s.policy.TTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deliver verification code")
	}
	s.metrics.RecordOTPEvent(string(channel), "sent")
	s.logger.Info("otp sent", zap.String("application_id", app.ID), zap.String("channel", string(channel)))

	return s.statusOf(app, channel, challenge), nil
}

// Verify checks the entered code. A wrong code keeps the channel SENT and
// editable; the right one marks it VERIFIED and locks the field.
func (s *OTPService) Verify(ctx context.Context, session *models.Session, applicationID string, channel models.OTPChannel, req dto.VerifyOTPRequest) (*dto.OTPVerification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "code must be numeric")
	}
	app, err := loadOwnedApplication(ctx, s.apps, session, applicationID)
	if err != nil {
		return nil, err
	}
	target, verified := contactOf(app, channel)
	if verified {
		return nil, appErrors.ErrOTPVerified
	}

	challenge, err := s.store.Get(ctx, app.ID, channel)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.ErrOTPNotSent
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification state")
	}

	now := s.now()
	if challenge.Target != target {
		s.discard(ctx, challenge)
		return nil, appErrors.Clone(appErrors.ErrOTPNotSent, "contact changed, request a new code")
	}
	if challenge.State == models.OTPStateLocked {
		return nil, appErrors.ErrOTPLocked
	}
	if challenge.Expired(now) {
		s.discard(ctx, challenge)
		s.metrics.RecordOTPEvent(string(channel), "expired")
		return nil, appErrors.ErrOTPExpired
	}

	attempts, err := s.store.RecordAttempt(ctx, app.ID, channel, challenge.ExpiresAt.Sub(now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attempt")
	}
	challenge.Attempts = attempts
	if attempts > s.policy.MaxAttempts {
		s.lock(ctx, challenge, now)
		return nil, appErrors.ErrOTPLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(strings.TrimSpace(req.Code))) != nil {
		s.metrics.RecordOTPEvent(string(channel), "rejected")
		if attempts >= s.policy.MaxAttempts {
			s.lock(ctx, challenge, now)
			return nil, appErrors.ErrOTPLocked
		}
		return nil, appErrors.WithDetails(appErrors.ErrOTPInvalid, s.statusOf(app, channel, challenge))
	}

	switch channel {
	case models.OTPChannelMobile:
		app.MobileVerified = true
		app.DeriveContacts()
	case models.OTPChannelEmail:
		app.EmailVerified = true
	}
	if err := s.apps.MarkContactVerified(ctx, app, channel); err != nil {
		if errors.Is(err, repository.ErrMobileTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "mobile number is already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save verification")
	}
	s.discard(ctx, challenge)
	s.metrics.RecordOTPEvent(string(channel), "verified")

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     session.ActorID(),
			Action:     models.AuditActionContactVerified,
			Resource:   "application",
			ResourceID: &app.ID,
			NewValues:  []byte(`{"channel":"` + string(channel) + `"}`),
			IPAddress:  session.IP,
			UserAgent:  session.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record verification audit log", zap.Error(err))
		}
	}

	return &dto.OTPVerification{Status: *s.statusOf(app, channel, nil), Application: app}, nil
}

// Status reports the verification state of a channel.
func (s *OTPService) Status(ctx context.Context, session *models.Session, applicationID string, channel models.OTPChannel) (*models.OTPStatus, error) {
	app, err := loadOwnedApplication(ctx, s.apps, session, applicationID)
	if err != nil {
		return nil, err
	}
	if _, verified := contactOf(app, channel); verified {
		return s.statusOf(app, channel, nil), nil
	}
	challenge, err := s.store.Get(ctx, app.ID, channel)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return s.statusOf(app, channel, nil), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification state")
	}
	target, _ := contactOf(app, channel)
	if challenge.Target != target || challenge.Expired(s.now()) {
		return s.statusOf(app, channel, nil), nil
	}
	return s.statusOf(app, channel, challenge), nil
}

func (s *OTPService) statusOf(app *models.Application, channel models.OTPChannel, challenge *models.OTPChallenge) *models.OTPStatus {
	target, verified := contactOf(app, channel)
	status := &models.OTPStatus{
		Channel:      channel,
		State:        models.OTPStateUnsent,
		Target:       target,
		AttemptsLeft: s.policy.MaxAttempts,
		Editable:     editable(app, channel),
	}
	if verified {
		status.State = models.OTPStateVerified
		status.AttemptsLeft = 0
		return status
	}
	if challenge == nil {
		return status
	}
	status.State = challenge.State
	expires := challenge.ExpiresAt
	resend := challenge.ResendAfter(s.policy.ResendCooldown)
	status.ExpiresAt = &expires
	status.ResendAfter = &resend
	if left := s.policy.MaxAttempts - challenge.Attempts; left > 0 {
		status.AttemptsLeft = left
	} else {
		status.AttemptsLeft = 0
	}
	return status
}

func (s *OTPService) checkTarget(channel models.OTPChannel, target string) error {
	rule := "email"
	if channel == models.OTPChannelMobile {
		rule = "numeric,len=10"
	}
	if err := s.validator.Var(target, rule); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "contact value is not valid for verification")
	}
	return nil
}

func (s *OTPService) lock(ctx context.Context, challenge *models.OTPChallenge, now time.Time) {
	if challenge.State == models.OTPStateLocked {
		return
	}
	challenge.State = models.OTPStateLocked
	challenge.LockedAt = &now
	ttl := challenge.ExpiresAt.Sub(now)
	if ttl < s.policy.ResendCooldown {
		ttl = s.policy.ResendCooldown
	}
	if err := s.store.Save(ctx, challenge, ttl); err != nil {
		s.logger.Warn("failed to lock otp challenge", zap.String("application_id", challenge.ApplicationID), zap.Error(err))
	}
	s.metrics.RecordOTPEvent(string(challenge.Channel), "locked")
}

func (s *OTPService) discard(ctx context.Context, challenge *models.OTPChallenge) {
	if err := s.store.Delete(ctx, challenge.ApplicationID, challenge.Channel); err != nil {
		s.logger.Warn("failed to discard otp challenge", zap.String("application_id", challenge.ApplicationID), zap.Error(err))
	}
}

func (s *OTPService) generateCode() (string, error) {
	if s.policy.StaticCode != "" {
		return s.policy.StaticCode, nil
	}
	var b strings.Builder
	for i := 0; i < s.policy.CodeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
