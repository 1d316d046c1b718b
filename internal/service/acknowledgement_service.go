package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/dto"
	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
	"github.com/noah-isme/admission-portal-api/pkg/export"
	"github.com/noah-isme/admission-portal-api/pkg/storage"
)

type tokenSigner interface {
	Sign(subject string) (string, time.Time, error)
	Verify(token string) (string, time.Time, error)
}

type slipRenderer interface {
	Render(slip export.Slip) ([]byte, error)
}

// AcknowledgementOptions describes the printed header and verification link.
type AcknowledgementOptions struct {
	InstitutionName    string
	InstitutionAddress string
	// VerifyBaseURL is the public endpoint tokens are appended to.
	VerifyBaseURL string
}

// AcknowledgementService issues printable slips for submitted applications.
type AcknowledgementService struct {
	apps     applicationGetter
	signer   tokenSigner
	renderer slipRenderer
	opts     AcknowledgementOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewAcknowledgementService constructs the service.
func NewAcknowledgementService(apps applicationGetter, signer tokenSigner, renderer slipRenderer, opts AcknowledgementOptions, logger *zap.Logger) *AcknowledgementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewSlipRenderer()
	}
	opts.VerifyBaseURL = strings.TrimRight(opts.VerifyBaseURL, "/")
	return &AcknowledgementService{
		apps:     apps,
		signer:   signer,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Slip renders the acknowledgement PDF for a submitted application.
func (s *AcknowledgementService) Slip(ctx context.Context, session *models.Session, applicationID string) ([]byte, string, error) {
	app, err := loadOwnedApplication(ctx, s.apps, session, applicationID)
	if err != nil {
		return nil, "", err
	}
	if !app.FormStatus.Submitted() {
		return nil, "", appErrors.Clone(appErrors.ErrInvalidTransition, "acknowledgement is available after submission")
	}

	token, _, err := s.signer.Sign(app.ID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign acknowledgement")
	}

	submitted := ""
	if app.SubmittedAt != nil {
		submitted = app.SubmittedAt.Format("02 Jan 2006 15:04 MST")
	}
	payload, err := s.renderer.Render(export.Slip{
		InstitutionName:    s.opts.InstitutionName,
		InstitutionAddress: s.opts.InstitutionAddress,
		Title:              fmt.Sprintf("Admission %d Acknowledgement", app.Year),
		Fields: []export.SlipField{
			{Label: "Application Form ID", Value: app.ApplicationFormID},
			{Label: "Applicant", Value: app.FullName()},
			{Label: "Mobile", Value: app.MobileNumber},
			{Label: "Email", Value: app.Email},
			{Label: "Degree Level", Value: humanize(string(app.DegreeLevel))},
			{Label: "Board/University", Value: app.BoardUniversity},
			{Label: "Status", Value: humanize(string(app.FormStatus))},
			{Label: "Submitted At", Value: submitted},
		},
		VerifyURL:   s.opts.VerifyBaseURL + "/" + token,
		GeneratedAt: s.now(),
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render acknowledgement")
	}
	return payload, fmt.Sprintf("acknowledgement-%s.pdf", app.ApplicationFormID), nil
}

// Verify resolves a token printed on a slip into the public summary.
func (s *AcknowledgementService) Verify(ctx context.Context, token string) (*dto.AcknowledgementView, error) {
	id, _, err := s.signer.Verify(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrInvalidSignature, "verification link expired")
		}
		return nil, appErrors.ErrInvalidSignature
	}
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return &dto.AcknowledgementView{
		ApplicationFormID: app.ApplicationFormID,
		Name:              app.FullName(),
		Year:              app.Year,
		FormStatus:        app.FormStatus,
		Tone:              app.FormStatus.Tone(),
	}, nil
}

func humanize(value string) string {
	words := strings.Split(strings.ToLower(value), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
