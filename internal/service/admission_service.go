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
	"github.com/noah-isme/admission-portal-api/pkg/export"
)

type admissionStore interface {
	GetByYear(ctx context.Context, year int) (*models.Admission, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationSummary, int, error)
	ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationSummary, error)
	Stats(ctx context.Context, year int) (models.AdmissionStats, error)
	BulkApply(ctx context.Context, params repository.BulkParams) (int, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type objectPurger interface {
	ObjectKeys(ctx context.Context, applicationIDs []string) ([]string, error)
	RemoveObjects(ctx context.Context, keys []string)
}

// AdmissionService serves the administrator view of an intake.
type AdmissionService struct {
	repo     admissionStore
	cache    statsCache
	purger   objectPurger
	metrics  *MetricsService
	csv      *export.CSVExporter
	statsTTL time.Duration
	logger   *zap.Logger
}

// NewAdmissionService constructs the service. cache and purger may be nil.
func NewAdmissionService(repo admissionStore, cache statsCache, purger objectPurger, metrics *MetricsService, statsTTL time.Duration, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if statsTTL <= 0 {
		statsTTL = time.Minute
	}
	return &AdmissionService{
		repo:     repo,
		cache:    cache,
		purger:   purger,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		statsTTL: statsTTL,
		logger:   logger,
	}
}

// admissionFilter converts the listing query string into repository criteria.
func admissionFilter(year int, query dto.AdmissionQuery) (models.ApplicationFilter, error) {
	filter := models.ApplicationFilter{
		Year:            year,
		Page:            query.Page,
		Size:            query.Size,
		Search:          strings.TrimSpace(query.Search),
		CategoryID:      strings.TrimSpace(query.Category),
		ReligionID:      strings.TrimSpace(query.Religion),
		AnnualIncomeID:  strings.TrimSpace(query.AnnualIncome),
		CourseID:        strings.TrimSpace(query.Course),
		BoardUniversity: strings.TrimSpace(query.BoardUniversity),
	}
	if g := strings.ToUpper(strings.TrimSpace(query.Gender)); g != "" {
		switch models.Gender(g) {
		case models.GenderMale, models.GenderFemale, models.GenderTransgender:
			filter.Gender = models.Gender(g)
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown gender filter")
		}
	}
	if raw := strings.TrimSpace(query.IsGujarati); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "isGujarati must be true or false")
		}
		filter.IsGujarati = &v
	}
	if raw := strings.ToUpper(strings.TrimSpace(query.FormStatus)); raw != "" {
		status := models.FormStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown form status filter")
		}
		filter.FormStatus = status
	}
	return filter, nil
}

// Overview returns the intake, its counters and one page of applications.
func (s *AdmissionService) Overview(ctx context.Context, year int, query dto.AdmissionQuery) (*dto.AdmissionOverview, error) {
	filter, err := admissionFilter(year, query)
	if err != nil {
		return nil, err
	}
	admission, err := s.admission(ctx, year)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, year)
	if err != nil {
		return nil, err
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	for i := range items {
		items[i].Tone = items[i].FormStatus.Tone()
	}
	if items == nil {
		items = []models.ApplicationSummary{}
	}
	return &dto.AdmissionOverview{Admission: admission, Stats: stats, Applications: items, TotalItems: total}, nil
}

func (s *AdmissionService) admission(ctx context.Context, year int) (*models.Admission, error) {
	admission, err := s.repo.GetByYear(ctx, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	return admission, nil
}

// Stats returns cached counters, computing them on a miss.
func (s *AdmissionService) Stats(ctx context.Context, year int) (models.AdmissionStats, error) {
	key := statsCacheKey(year)
	var stats models.AdmissionStats
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &stats); err == nil && hit {
			return stats, nil
		}
	}
	start := time.Now()
	stats, err := s.repo.Stats(ctx, year)
	s.metrics.ObserveDBQuery("admission_stats", time.Since(start))
	if err != nil {
		return models.AdmissionStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute admission stats")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.Warn("failed to cache admission stats", zap.Int("year", year), zap.Error(err))
		}
	}
	return stats, nil
}

// BulkAction applies one action to every selected application or to none.
func (s *AdmissionService) BulkAction(ctx context.Context, session *models.Session, year int, req dto.BulkActionRequest) (*models.BulkResult, error) {
	if !session.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	ids := dedupe(req.ApplicationIDs)
	if len(ids) == 0 {
		return nil, appErrors.ErrEmptySelection
	}
	action := models.BulkAction(strings.ToUpper(strings.TrimSpace(string(req.Action))))
	if !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be APPROVE, REJECT or DELETE")
	}

	var objectKeys []string
	if action == models.BulkDelete && s.purger != nil {
		keys, err := s.purger.ObjectKeys(ctx, ids)
		if err != nil {
			s.logger.Warn("failed to collect document keys", zap.Error(err))
		}
		objectKeys = keys
	}

	affected, err := s.repo.BulkApply(ctx, repository.BulkParams{
		Year:   year,
		IDs:    ids,
		Action: action,
		Audit: &models.AuditLog{
			UserID:    session.ActorID(),
			Action:    action.AuditAction(),
			Resource:  "application",
			NewValues: bulkAuditJSON(year, ids),
			IPAddress: session.IP,
			UserAgent: session.UserAgent,
		},
	})
	s.metrics.RecordBulkAction(string(action), affected, err)
	if err != nil {
		var missing *repository.MissingApplicationsError
		var transition *repository.TransitionError
		switch {
		case errors.As(err, &missing):
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "some applications were not found"),
				map[string]interface{}{"applicationIds": missing.IDs})
		case errors.As(err, &transition):
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidTransition, transition.Error()),
				map[string]interface{}{"applicationId": transition.ID, "formStatus": transition.From})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply bulk action")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, statsCacheKey(year)); err != nil {
			s.logger.Warn("failed to invalidate admission stats", zap.Int("year", year), zap.Error(err))
		}
	}
	if len(objectKeys) > 0 {
		s.purger.RemoveObjects(ctx, objectKeys)
	}
	s.logger.Info("bulk action applied",
		zap.String("action", string(action)),
		zap.Int("year", year),
		zap.Int("affected", affected),
		zap.String("actor", session.UserID))

	result := &models.BulkResult{Action: action, Affected: affected, ApplicationIDs: ids}
	if target, ok := action.Target(); ok {
		result.FormStatus = target
		result.Tone = target.Tone()
	}
	return result, nil
}

var exportHeaders = []string{"Form ID", "First Name", "Middle Name", "Last Name", "Mobile", "Email", "Gender", "Board/University", "Gujarati", "Status", "Submitted At"}

// ExportCSV renders every application matching the query.
func (s *AdmissionService) ExportCSV(ctx context.Context, year int, query dto.AdmissionQuery) ([]byte, string, error) {
	filter, err := admissionFilter(year, query)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.admission(ctx, year); err != nil {
		return nil, "", err
	}
	items, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export applications")
	}
	data := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(items))}
	for _, item := range items {
		submitted := ""
		if item.SubmittedAt != nil {
			submitted = item.SubmittedAt.Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, map[string]string{
			"Form ID":          item.ApplicationFormID,
			"First Name":       item.FirstName,
			"Middle Name":      item.MiddleName,
			"Last Name":        item.LastName,
			"Mobile":           item.MobileNumber,
			"Email":            item.Email,
			"Gender":           string(item.Gender),
			"Board/University": item.BoardUniversity,
			"Gujarati":         strconv.FormatBool(item.IsGujarati),
			"Status":           string(item.FormStatus),
			"Submitted At":     submitted,
		})
	}
	payload, err := s.csv.Render(data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, fmt.Sprintf("applications-%d.csv", year), nil
}

func bulkAuditJSON(year int, ids []string) []byte {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return []byte(fmt.Sprintf(`{"year":%d,"applicationIds":[%s]}`, year, strings.Join(quoted, ",")))
}
