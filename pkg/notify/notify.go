package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/pkg/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Message is a single outbound notification.
type Message struct {
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSender delivers email through the SendGrid v3 API.
type SendGridSender struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewEmailSender returns a SendGrid sender, or a log sender when no key is configured.
func NewEmailSender(cfg config.EmailConfig, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendGridKey == "" {
		return NewLogSender("email", logger)
	}
	return &SendGridSender{
		key:    cfg.SendGridKey,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		logger: logger,
	}
}

// Send posts the message. Responses with status >= 400 are errors so the job queue retries.
func (s *SendGridSender) Send(_ context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.Name, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	s.logger.Debug("email sent", zap.Int("status", res.StatusCode))
	return nil
}

// LogSender writes messages to the structured log instead of a provider.
// It backs both channels outside production when no credentials are set.
type LogSender struct {
	channel string
	logger  *zap.Logger
}

// NewLogSender constructs a log-only sender for channel.
func NewLogSender(channel string, logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{channel: channel, logger: logger}
}


// Send logs the message. The recipient is masked.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("%s recipient required", s.channel)
	}
	s.logger.Info("notification dispatched",
		zap.String("channel", s.channel),
		zap.String("to", Mask(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Mask hides all but the last four characters of a contact value.
func Mask(value string) string {
	if len(value) <= 4 {
		return value
	}
	masked := make([]byte, len(value))
	for i := range masked {
		if i < len(value)-4 && value[i] != '@' {
			masked[i] = '*'
			continue
		}
		masked[i] = value[i]
	}
	return string(masked)
}
