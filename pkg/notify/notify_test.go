package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/admission-portal-api/pkg/config"
)

func TestLogSenderMasksRecipient(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := NewLogSender("sms", zap.New(core))

	require.NoError(t, sender.Send(context.Background(), Message{To: "9876543210", Subject: "code"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "******3210", logs.All()[0].ContextMap()["to"])
}

func TestLogSenderRequiresRecipient(t *testing.T) {
	sender := NewLogSender("sms", nil)
	assert.Error(t, sender.Send(context.Background(), Message{}))
}

func TestNewEmailSenderFallsBackToLog(t *testing.T) {
	sender := NewEmailSender(config.EmailConfig{}, nil)
	_, ok := sender.(*LogSender)
	assert.True(t, ok)

	sender = NewEmailSender(config.EmailConfig{SendGridKey: "key", FromAddress: "a@b.c"}, nil)
	_, ok = sender.(*SendGridSender)
	assert.True(t, ok)
}
