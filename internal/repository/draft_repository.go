package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/admission-portal-api/internal/models"
)

// DraftRepository keeps nested composite drafts in Redis until commit or cancel.
type DraftRepository struct {
	store jsonStore
	ttl   time.Duration
}

// NewDraftRepository constructs the repository. Drafts expire after ttl of inactivity.
func NewDraftRepository(store jsonStore, ttl time.Duration) *DraftRepository {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &DraftRepository{store: store, ttl: ttl}
}

func draftKey(kind models.DraftKind, applicationID string) string {
	return fmt.Sprintf("draft:%s:%s", kind, applicationID)
}

// GetSubjectMarks loads the open marks draft.
func (r *DraftRepository) GetSubjectMarks(ctx context.Context, applicationID string) (*models.SubjectMarksDraft, error) {
	var draft models.SubjectMarksDraft
	if err := r.store.Get(ctx, draftKey(models.DraftSubjectMarks, applicationID), &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// SaveSubjectMarks stores the marks draft and refreshes its expiry.
func (r *DraftRepository) SaveSubjectMarks(ctx context.Context, draft *models.SubjectMarksDraft) error {
	return r.store.Set(ctx, draftKey(models.DraftSubjectMarks, draft.ApplicationID), draft, r.ttl)
}

// GetInstitution loads the open institution draft.
func (r *DraftRepository) GetInstitution(ctx context.Context, applicationID string) (*models.InstitutionDraft, error) {
	var draft models.InstitutionDraft
	if err := r.store.Get(ctx, draftKey(models.DraftInstitution, applicationID), &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// SaveInstitution stores the institution draft.
func (r *DraftRepository) SaveInstitution(ctx context.Context, draft *models.InstitutionDraft) error {
	return r.store.Set(ctx, draftKey(models.DraftInstitution, draft.ApplicationID), draft, r.ttl)
}

// Discard drops a draft of kind.
func (r *DraftRepository) Discard(ctx context.Context, kind models.DraftKind, applicationID string) error {
	return r.store.Delete(ctx, draftKey(kind, applicationID))
}
