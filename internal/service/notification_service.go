package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/pkg/jobs"
	"github.com/noah-isme/admission-portal-api/pkg/notify"
)

const (
	jobSendEmail = "notification.email"
	jobSendSMS   = "notification.sms"
)

type jobQueue interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(ctx context.Context, job jobs.Job) error
}

// NotificationService hands outbound email and SMS to the background queue.
// Without a queue messages are delivered inline.
type NotificationService struct {
	queue   jobQueue
	email   notify.Sender
	sms     notify.Sender
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService wires senders into the queue.
func NewNotificationService(queue jobQueue, email, sms notify.Sender, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if email == nil {
		email = notify.NewLogSender("email", logger)
	}
	if sms == nil {
		sms = notify.NewLogSender("sms", logger)
	}
	s := &NotificationService{queue: queue, email: email, sms: sms, metrics: metrics, logger: logger}
	if queue != nil {
		queue.Register(jobSendEmail, s.handler("email", email))
		queue.Register(jobSendSMS, s.handler("sms", sms))
	}
	return s
}

func (s *NotificationService) handler(channel string, sender notify.Sender) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(notify.Message)
		if !ok {
			s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
			return nil
		}
		err := sender.Send(ctx, msg)
		s.metrics.RecordNotification(channel, err)
		return err
	}
}

func (s *NotificationService) dispatch(ctx context.Context, jobType string, msg notify.Message) error {
	if s.queue == nil {
		sender, channel := s.email, "email"
		if jobType == jobSendSMS {
			sender, channel = s.sms, "sms"
		}
		err := sender.Send(ctx, msg)
		s.metrics.RecordNotification(channel, err)
		return err
	}
	return s.queue.Enqueue(ctx, jobs.Job{Type: jobType, Payload: msg})
}

// SendOTP delivers a verification code over the channel being verified.
func (s *NotificationService) SendOTP(ctx context.Context, channel models.OTPChannel, target, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())
	text := fmt.Sprintf("Your admission portal verification code is %s. It expires in %d minutes.", code, minutes)
	switch channel {
	case models.OTPChannelMobile:
		return s.dispatch(ctx, jobSendSMS, notify.Message{To: target, Text: text})
	case models.OTPChannelEmail:
		return s.dispatch(ctx, jobSendEmail, notify.Message{
			To:      target,
			Subject: "Verify your email address",
			Text:    text,
			HTML:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>", code, minutes),
		})
	}
	return fmt.Errorf("unsupported channel %s", channel)
}

// ApplicationSubmitted confirms a final submission to the applicant.
func (s *NotificationService) ApplicationSubmitted(ctx context.Context, app *models.Application) error {
	text := fmt.Sprintf("Application %s for %d has been submitted.", app.ApplicationFormID, app.Year)
	if app.MobileNumber != "" {
		if err := s.dispatch(ctx, jobSendSMS, notify.Message{To: app.MobileNumber, Text: text}); err != nil {
			return err
		}
	}
	if app.Email != "" {
		return s.dispatch(ctx, jobSendEmail, notify.Message{
			To:      app.Email,
			Name:    app.FullName(),
			Subject: "Application submitted",
			Text:    text,
		})
	}
	return nil
}
