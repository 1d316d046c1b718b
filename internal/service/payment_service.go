package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/internal/repository"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/payment"
)

type paymentGateway interface {
	CreateCheckout(charge payment.Charge) (*payment.Checkout, error)
	Verify(n payment.Notification) bool
}

type paymentStore interface {
	GetByID(ctx context.Context, id string) (*models.Application, error)
	GetByFormID(ctx context.Context, formID string) (*models.Application, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
}

// PaymentService collects the application fee through the payment gateway.
type PaymentService struct {
	apps        paymentStore
	admissions  admissionFinder
	gateway     paymentGateway
	form        *FormValidator
	cache       cacheInvalidator
	metrics     *MetricsService
	orderPrefix string
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentService constructs the service. A nil gateway disables paid checkouts.
func NewPaymentService(apps paymentStore, admissions admissionFinder, gateway paymentGateway, form *FormValidator, cache cacheInvalidator, metrics *MetricsService, orderPrefix string, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if form == nil {
		form = NewFormValidator(nil, nil)
	}
	return &PaymentService{
		apps:        apps,
		admissions:  admissions,
		gateway:     gateway,
		form:        form,
		cache:       cache,
		metrics:     metrics,
		orderPrefix: orderPrefix,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// OrderID builds the gateway order id for a payment attempt.
func (s *PaymentService) OrderID(app *models.Application, attempt int) string {
	return fmt.Sprintf("%s%s-%d", s.orderPrefix, app.ApplicationFormID, attempt)
}

// parseOrderID splits a gateway order id into the form id and attempt number.
func (s *PaymentService) parseOrderID(orderID string) (string, int, bool) {
	rest := strings.TrimPrefix(orderID, s.orderPrefix)
	if rest == orderID && s.orderPrefix != "" {
		return "", 0, false
	}
	cut := strings.LastIndex(rest, "-")
	if cut <= 0 || cut == len(rest)-1 {
		return "", 0, false
	}
	attempt, err := strconv.Atoi(rest[cut+1:])
	if err != nil || attempt < 1 {
		return "", 0, false
	}
	return rest[:cut], attempt, true
}

// Initiate opens a checkout for the application fee and moves the
// application to PAYMENT_DUE. Intakes without a fee are settled at once.
func (s *PaymentService) Initiate(ctx context.Context, session *models.Session, id string) (*dto.PaymentCheckout, error) {
	app, err := loadOwnedApplication(ctx, s.apps, session, id)
	if err != nil {
		return nil, err
	}
	if app.FormStatus.Paid() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application fee already paid")
	}
	if app.FormStatus != models.FormStatusPaymentDue && !app.FormStatus.CanTransition(models.FormStatusPaymentDue) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot start payment from %s", app.FormStatus))
	}
	step, fieldErrs, err := s.form.ValidateAll(ctx, app)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate application")
	}
	if len(fieldErrs) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrStepIncomplete, fmt.Sprintf("%s is incomplete", step)), fieldErrs)
	}

	admission, err := s.admissions.GetByYear(ctx, app.Year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}

	if admission.ApplicationFee <= 0 {
		if err := s.transition(ctx, session, app, models.FormStatusPaymentSuccess, nil, nil); err != nil {
			return nil, err
		}
		s.metrics.RecordPayment("waived")
		return checkoutResult(app, 0, nil), nil
	}

	if s.gateway == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "online payment is not available")
	}
	attempt := app.PaymentAttempts + 1
	orderID := s.OrderID(app, attempt)
	checkout, err := s.gateway.CreateCheckout(payment.Charge{
		OrderID:     orderID,
		Amount:      admission.ApplicationFee,
		Description: fmt.Sprintf("Application fee %s", app.ApplicationFormID),
		Customer: payment.Customer{
			FirstName: app.FirstName,
			LastName:  app.LastName,
			Email:     app.Email,
			Phone:     app.MobileNumber,
		},
	})
	if err != nil {
		s.metrics.RecordPayment("checkout_error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start payment")
	}
	if err := s.transition(ctx, session, app, models.FormStatusPaymentDue, &orderID, &attempt); err != nil {
		return nil, err
	}
	s.metrics.RecordPayment("initiated")
	return checkoutResult(app, admission.ApplicationFee, checkout), nil
}

// HandleNotification applies a gateway callback. Unknown orders, pending
// payments and repeated callbacks are acknowledged without changes.
func (s *PaymentService) HandleNotification(ctx context.Context, n payment.Notification) error {
	if s.gateway == nil || !s.gateway.Verify(n) {
		s.metrics.RecordPayment("bad_signature")
		return appErrors.ErrInvalidSignature
	}
	outcome := payment.Classify(n)
	if outcome == payment.OutcomePending || outcome == payment.OutcomeIgnored {
		return nil
	}

	formID, attempt, ok := s.parseOrderID(n.OrderID)
	if !ok {
		s.logger.Warn("payment notification for unknown order", zap.String("order_id", n.OrderID))
		return nil
	}
	app, err := s.apps.GetByFormID(ctx, formID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("payment notification for unknown order", zap.String("order_id", n.OrderID))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if attempt > app.PaymentAttempts {
		s.logger.Warn("payment notification for unknown order", zap.String("order_id", n.OrderID))
		return nil
	}

	// Any attempt of the application may settle it. Failures only count for
	// the order the applicant is currently paying.
	target := models.FormStatusPaymentFailed
	var settledOrder *string
	if outcome == payment.OutcomePaid {
		target = models.FormStatusPaymentSuccess
		settledOrder = &n.OrderID
	} else if app.PaymentOrderID == nil || *app.PaymentOrderID != n.OrderID {
		s.logger.Info("payment failure for superseded order ignored",
			zap.String("order_id", n.OrderID),
			zap.String("transaction_status", n.TransactionStatus))
		return nil
	}
	if app.FormStatus == target || app.FormStatus.Paid() || !app.FormStatus.CanTransition(target) {
		s.logger.Info("payment notification ignored",
			zap.String("order_id", n.OrderID),
			zap.String("form_status", string(app.FormStatus)),
			zap.String("transaction_status", n.TransactionStatus))
		return nil
	}

	if err := s.transition(ctx, nil, app, target, settledOrder, nil); err != nil {
		return err
	}
	s.metrics.RecordPayment(string(outcome))
	s.logger.Info("payment status updated",
		zap.String("application_id", app.ID),
		zap.String("order_id", n.OrderID),
		zap.String("form_status", string(target)))
	return nil
}

func (s *PaymentService) transition(ctx context.Context, session *models.Session, app *models.Application, to models.FormStatus, orderID *string, attempts *int) error {
	err := s.apps.Transition(ctx, repository.TransitionParams{
		ID:              app.ID,
		From:            app.FormStatus,
		To:              to,
		At:              s.now(),
		PaymentOrderID:  orderID,
		PaymentAttempts: attempts,
		Audit: &models.AuditLog{
			UserID:     session.ActorID(),
			Action:     models.AuditActionPaymentUpdate,
			Resource:   "application",
			ResourceID: &app.ID,
			OldValues:  statusJSON(app.FormStatus),
			NewValues:  statusJSON(to),
			IPAddress:  sessionIP(session),
		},
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return appErrors.Clone(appErrors.ErrConflict, "application status changed, reload and try again")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	app.FormStatus = to
	if orderID != nil {
		app.PaymentOrderID = orderID
	}
	if attempts != nil {
		app.PaymentAttempts = *attempts
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, statsCacheKey(app.Year)); err != nil {
			s.logger.Warn("failed to invalidate admission stats", zap.Int("year", app.Year), zap.Error(err))
		}
	}
	return nil
}

func checkoutResult(app *models.Application, amount int64, checkout *payment.Checkout) *dto.PaymentCheckout {
	out := &dto.PaymentCheckout{
		ApplicationID: app.ID,
		FormStatus:    app.FormStatus,
		Tone:          app.FormStatus.Tone(),
		Amount:        amount,
	}
	if checkout != nil {
		out.OrderID = checkout.OrderID
		out.Token = checkout.Token
		out.RedirectURL = checkout.RedirectURL
	}
	return out
}
