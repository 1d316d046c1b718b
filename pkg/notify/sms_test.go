package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/noah-isme/admission-portal-api/pkg/config"
)

type fakeMessageAPI struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessageAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestNewSMSSenderRequiresCredentialsInProduction(t *testing.T) {
	sender, err := NewSMSSender(config.SMSConfig{SenderID: "ADMSN"}, config.EnvProduction, nil)
	assert.ErrorIs(t, err, ErrSMSNotConfigured)
	assert.Nil(t, sender)

	sender, err = NewSMSSender(config.SMSConfig{AccountSID: "AC1", AuthToken: "token"}, config.EnvProduction, nil)
	assert.ErrorIs(t, err, ErrSMSNotConfigured)
	assert.Nil(t, sender)
}

func TestNewSMSSenderFallsBackToLogOutsideProduction(t *testing.T) {
	sender, err := NewSMSSender(config.SMSConfig{}, "development", nil)
	require.NoError(t, err)
	_, ok := sender.(*LogSender)
	assert.True(t, ok)
}

func TestNewSMSSenderUsesTwilioWithCredentials(t *testing.T) {
	sender, err := NewSMSSender(config.SMSConfig{AccountSID: "AC1", AuthToken: "token", FromNumber: "+15550001111"}, config.EnvProduction, nil)
	require.NoError(t, err)
	_, ok := sender.(*TwilioSender)
	assert.True(t, ok)
}

func TestTwilioSenderSend(t *testing.T) {
	api := &fakeMessageAPI{}
	sender := newTwilioSender(api, "+15550001111", nil)

	require.NoError(t, sender.Send(context.Background(), Message{To: "+919876543210", Text: "Your code is 123456"}))
	require.NotNil(t, api.params)
	assert.Equal(t, "+919876543210", *api.params.To)
	assert.Equal(t, "+15550001111", *api.params.From)
	assert.Equal(t, "Your code is 123456", *api.params.Body)

	api.err = errors.New("unreachable")
	assert.Error(t, sender.Send(context.Background(), Message{To: "+919876543210", Text: "x"}))
	assert.Error(t, sender.Send(context.Background(), Message{}))
}
