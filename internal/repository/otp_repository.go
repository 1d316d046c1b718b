package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/admission-portal-api/internal/models"
	appErrors "github.com/noah-isme/admission-portal-api/pkg/errors"
)

type jsonStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type counterStore interface {
	jsonStore
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// OTPRepository keeps one challenge per application channel. Wrong-code
// attempts are counted in a separate key so concurrent guesses cannot share
// a stale count.
type OTPRepository struct {
	store counterStore
}

// NewOTPRepository constructs the repository on top of the Redis JSON store.
func NewOTPRepository(store counterStore) *OTPRepository {
	return &OTPRepository{store: store}
}

func otpKey(applicationID string, channel models.OTPChannel) string {
	return fmt.Sprintf("otp:%s:%s", applicationID, strings.ToLower(string(channel)))
}

func otpAttemptsKey(applicationID string, channel models.OTPChannel) string {
	return otpKey(applicationID, channel) + ":attempts"
}

// Get returns the active challenge or ErrCacheMiss. Attempts reflects the
// shared counter.
func (r *OTPRepository) Get(ctx context.Context, applicationID string, channel models.OTPChannel) (*models.OTPChallenge, error) {
	var challenge models.OTPChallenge
	if err := r.store.Get(ctx, otpKey(applicationID, channel), &challenge); err != nil {
		return nil, err
	}
	var attempts int
	switch err := r.store.Get(ctx, otpAttemptsKey(applicationID, channel), &attempts); {
	case err == nil:
		challenge.Attempts = attempts
	case errors.Is(err, appErrors.ErrCacheMiss):
	default:
		return nil, err
	}
	return &challenge, nil
}

// RecordAttempt reserves one verification attempt and returns the running total.
func (r *OTPRepository) RecordAttempt(ctx context.Context, applicationID string, channel models.OTPChannel, ttl time.Duration) (int, error) {
	n, err := r.store.Incr(ctx, otpAttemptsKey(applicationID, channel), ttl)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Save stores the challenge until ttl passes.
func (r *OTPRepository) Save(ctx context.Context, challenge *models.OTPChallenge, ttl time.Duration) error {
	return r.store.Set(ctx, otpKey(challenge.ApplicationID, challenge.Channel), challenge, ttl)
}

// Delete discards the challenge and its attempt counter.
func (r *OTPRepository) Delete(ctx context.Context, applicationID string, channel models.OTPChannel) error {
	return r.store.Delete(ctx, otpKey(applicationID, channel), otpAttemptsKey(applicationID, channel))
}
