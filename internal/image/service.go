package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/imagelify/api/internal/moderation"
	"github.com/imagelify/api/internal/storage"
	"github.com/imagelify/api/internal/user"
)

// ErrContentRejected is returned when moderation classifies the upload as a
// policy violation. Nothing is stored or persisted.
var ErrContentRejected = errors.New("image contains inappropriate content")

// ErrQuotaExceeded is returned when the user's plan cap is reached.
var ErrQuotaExceeded = errors.New("image upload limit reached for your plan")

// ErrStorageFailed is returned when the object store write fails.
var ErrStorageFailed = errors.New("storing image failed")

// ErrPersistFailed is returned when the metadata write fails after a
// successful object store write. The stored object is orphaned.
var ErrPersistFailed = errors.New("recording image metadata failed")

// RecordStore is the metadata persistence the pipeline depends on.
type RecordStore interface {
	Save(ctx context.Context, img *Image) (*Image, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]Image, error)
}

// UserDirectory resolves user identities to accounts with plans.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Service runs the upload admission pipeline.
type Service struct {
	records   RecordStore
	users     UserDirectory
	store     storage.Storage
	moderator moderation.Checker
	log       zerolog.Logger
}

// NewService creates a new image Service.
func NewService(records RecordStore, users UserDirectory, store storage.Storage, moderator moderation.Checker, log zerolog.Logger) *Service {
	return &Service{
		records:   records,
		users:     users,
		store:     store,
		moderator: moderator,
		log:       log,
	}
}

// Upload runs one file through the admission pipeline: moderation, then the
// quota check against a fresh count, then the object store write, then the
// metadata record. The order is fixed; each later step is more expensive and
// harder to undo than the one before, and any failure ends the pipeline.
//
// The count-then-store sequence is not serialized per user, so two concurrent
// uploads can both observe a count below the cap and briefly overshoot it.
func (s *Service) Upload(ctx context.Context, data []byte, contentType, filename, userID string) (*Image, error) {
	decision, err := s.moderator.Check(ctx, data, filename)
	if err != nil {
		// Fail closed: an unreachable or unclassifiable provider rejects.
		return nil, err
	}
	if !decision.Admitted {
		s.log.Info().
			Str("user_id", userID).
			Str("category", decision.Category).
			Float64("score", decision.Score).
			Msg("upload rejected by moderation")
		return nil, ErrContentRejected
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.Plan != nil && u.Plan.MaxImages != nil {
		count, err := s.records.CountByUser(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch image count: %w", err)
		}
		if !WithinQuota(count, u.Plan.MaxImages) {
			return nil, ErrQuotaExceeded
		}
	}

	locator, err := s.store.Store(ctx, data, contentType, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	img := &Image{
		Filename:   filename,
		URL:        locator,
		FileSize:   int64(len(data)),
		MimeType:   contentType,
		UploadedAt: time.Now(),
		UserID:     u.ID,
	}

	saved, err := s.records.Save(ctx, img)
	if err != nil {
		// The object was already written; it is now orphaned and needs
		// out-of-band reconciliation.
		s.log.Error().Err(err).
			Str("user_id", userID).
			Str("locator", locator).
			Msg("image stored but metadata write failed, object orphaned")
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	return saved, nil
}

// ListByUser returns the user's image records.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Image, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.records.ListByUser(ctx, userID)
}
