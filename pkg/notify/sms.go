package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/pkg/config"
)

// ErrSMSNotConfigured is returned in production when no SMS credentials are set.
var ErrSMSNotConfigured = errors.New("sms provider credentials are not configured")

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers text messages through the Twilio Messages API.
type TwilioSender struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

// NewSMSSender returns the sender used for mobile verification codes.
// Production requires Twilio credentials; other environments fall back to the log sender.
func NewSMSSender(cfg config.SMSConfig, env string, logger *zap.Logger) (Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		if env == config.EnvProduction {
			return nil, ErrSMSNotConfigured
		}
		return NewLogSender("sms", logger.With(zap.String("sender_id", cfg.SenderID))), nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSender(client.Api, cfg.FromNumber, logger), nil
}

func newTwilioSender(api messageCreator, from string, logger *zap.Logger) *TwilioSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwilioSender{api: api, from: from, logger: logger}
}

// Send creates one outbound message. Errors are returned so the job queue retries.
func (s *TwilioSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("sms recipient required")
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(s.from)
	params.SetBody(msg.Text)

	res, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	sid := ""
	if res != nil && res.Sid != nil {
		sid = *res.Sid
	}
	s.logger.Debug("sms sent", zap.String("to", Mask(msg.To)), zap.String("sid", sid))
	return nil
}
