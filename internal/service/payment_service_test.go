package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/internal/repository"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/payment"
)

type memoryApplications struct {
	apps         map[string]*models.Application
	transitions  []repository.TransitionParams
	mobileOwners map[string]string
}

func newMemoryApplications(apps ...*models.Application) *memoryApplications {
	m := &memoryApplications{apps: map[string]*models.Application{}}
	for _, app := range apps {
		m.apps[app.ID] = app
	}
	return m
}

func (m *memoryApplications) GetByID(ctx context.Context, id string) (*models.Application, error) {
	app, ok := m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *app
	return &clone, nil
}

func (m *memoryApplications) GetByFormID(ctx context.Context, formID string) (*models.Application, error) {
	for _, app := range m.apps {
		if app.ApplicationFormID == formID {
			clone := *app
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryApplications) Transition(ctx context.Context, params repository.TransitionParams) error {
	app, ok := m.apps[params.ID]
	if !ok || app.FormStatus != params.From {
		return repository.ErrStaleStatus
	}
	app.FormStatus = params.To
	if params.PaymentOrderID != nil {
		app.PaymentOrderID = params.PaymentOrderID
	}
	if params.PaymentAttempts != nil {
		app.PaymentAttempts = *params.PaymentAttempts
	}
	m.transitions = append(m.transitions, params)
	return nil
}

func (m *memoryApplications) MarkContactVerified(ctx context.Context, app *models.Application, channel models.OTPChannel) error {
	if channel == models.OTPChannelMobile {
		if owner, ok := m.mobileOwners[app.MobileNumber]; ok && owner != app.UserID {
			return repository.ErrMobileTaken
		}
	}
	clone := *app
	m.apps[app.ID] = &clone
	return nil
}

type fixedAdmissions struct {
	admission *models.Admission
}

func (f fixedAdmissions) GetByYear(ctx context.Context, year int) (*models.Admission, error) {
	if f.admission == nil || f.admission.Year != year {
		return nil, sql.ErrNoRows
	}
	return f.admission, nil
}

type fakeGateway struct {
	charges []payment.Charge
	valid   bool
}

func (g *fakeGateway) CreateCheckout(charge payment.Charge) (*payment.Checkout, error) {
	g.charges = append(g.charges, charge)
	return &payment.Checkout{OrderID: charge.OrderID, Token: "snap-token", RedirectURL: "https://pay.example/" + charge.OrderID}, nil
}

func (g *fakeGateway) Verify(n payment.Notification) bool {
	return g.valid
}

var studentSession = &models.Session{UserID: "user-1", Role: models.RoleStudent}

func newPaymentFixture(fee int64) (*PaymentService, *memoryApplications, *fakeGateway) {
	apps := newMemoryApplications(completeApplication())
	gateway := &fakeGateway{valid: true}
	admissions := fixedAdmissions{admission: &models.Admission{Year: 2025, Active: true, ApplicationFee: fee}}
	return NewPaymentService(apps, admissions, gateway, nil, nil, nil, "ADM-", nil), apps, gateway
}

func TestPaymentServiceInitiate(t *testing.T) {
	svc, apps, gateway := newPaymentFixture(50000)

	checkout, err := svc.Initiate(context.Background(), studentSession, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "ADM-2025-000001-1", checkout.OrderID)
	assert.Equal(t, "snap-token", checkout.Token)
	assert.Equal(t, models.FormStatusPaymentDue, checkout.FormStatus)
	assert.Equal(t, models.TonePending, checkout.Tone)
	require.Len(t, gateway.charges, 1)
	assert.Equal(t, int64(50000), gateway.charges[0].Amount)
	assert.Equal(t, 1, apps.apps["app-1"].PaymentAttempts)

	retry, err := svc.Initiate(context.Background(), studentSession, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "ADM-2025-000001-2", retry.OrderID)
}

func TestPaymentServiceInitiateWithoutFee(t *testing.T) {
	svc, apps, gateway := newPaymentFixture(0)

	checkout, err := svc.Initiate(context.Background(), studentSession, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.FormStatusPaymentSuccess, checkout.FormStatus)
	assert.Empty(t, gateway.charges)
	assert.Equal(t, models.FormStatusPaymentSuccess, apps.apps["app-1"].FormStatus)
}

func TestPaymentServiceInitiateRequiresCompleteForm(t *testing.T) {
	svc, apps, _ := newPaymentFixture(50000)
	apps.apps["app-1"].PaymentMethod = ""

	_, err := svc.Initiate(context.Background(), studentSession, "app-1")
	assert.True(t, errors.Is(err, appErrors.ErrStepIncomplete))

	_, err = svc.Initiate(context.Background(), &models.Session{UserID: "someone-else", Role: models.RoleStudent}, "app-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestPaymentServiceNotification(t *testing.T) {
	svc, apps, gateway := newPaymentFixture(50000)
	ctx := context.Background()

	checkout, err := svc.Initiate(ctx, studentSession, "app-1")
	require.NoError(t, err)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: checkout.OrderID, TransactionStatus: "pending"}))
	assert.Equal(t, models.FormStatusPaymentDue, apps.apps["app-1"].FormStatus)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: checkout.OrderID, TransactionStatus: "expire"}))
	assert.Equal(t, models.FormStatusPaymentFailed, apps.apps["app-1"].FormStatus)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: checkout.OrderID, TransactionStatus: "settlement"}))
	assert.Equal(t, models.FormStatusPaymentSuccess, apps.apps["app-1"].FormStatus)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: checkout.OrderID, TransactionStatus: "deny"}))
	assert.Equal(t, models.FormStatusPaymentSuccess, apps.apps["app-1"].FormStatus)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: "unknown", TransactionStatus: "settlement"}))

	gateway.valid = false
	err = svc.HandleNotification(ctx, payment.Notification{OrderID: checkout.OrderID, TransactionStatus: "settlement"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidSignature))
}

func TestPaymentServiceSettlesEarlierAttempt(t *testing.T) {
	svc, apps, _ := newPaymentFixture(50000)
	ctx := context.Background()

	first, err := svc.Initiate(ctx, studentSession, "app-1")
	require.NoError(t, err)
	second, err := svc.Initiate(ctx, studentSession, "app-1")
	require.NoError(t, err)
	require.Equal(t, "ADM-2025-000001-1", first.OrderID)
	require.Equal(t, "ADM-2025-000001-2", second.OrderID)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: first.OrderID, TransactionStatus: "expire"}))
	assert.Equal(t, models.FormStatusPaymentDue, apps.apps["app-1"].FormStatus)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: first.OrderID, TransactionStatus: "settlement"}))
	assert.Equal(t, models.FormStatusPaymentSuccess, apps.apps["app-1"].FormStatus)
	require.NotNil(t, apps.apps["app-1"].PaymentOrderID)
	assert.Equal(t, first.OrderID, *apps.apps["app-1"].PaymentOrderID)
}

func TestPaymentServiceIgnoresUnissuedAttempt(t *testing.T) {
	svc, apps, _ := newPaymentFixture(50000)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, studentSession, "app-1")
	require.NoError(t, err)

	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: "ADM-2025-000001-7", TransactionStatus: "settlement"}))
	require.NoError(t, svc.HandleNotification(ctx, payment.Notification{OrderID: "OTHER-2025-000001-1", TransactionStatus: "settlement"}))
	assert.Equal(t, models.FormStatusPaymentDue, apps.apps["app-1"].FormStatus)
}
