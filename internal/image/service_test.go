package image

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagelify/api/internal/moderation"
	"github.com/imagelify/api/internal/user"
)

type fakeModerator struct {
	decision moderation.Decision
	err      error
	calls    int
}

func (f *fakeModerator) Check(ctx context.Context, data []byte, filename string) (moderation.Decision, error) {
	f.calls++
	return f.decision, f.err
}

type fakeStore struct {
	locator string
	err     error
	calls   int
}

func (f *fakeStore) Store(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.locator != "" {
		return f.locator, nil
	}
	return fmt.Sprintf("https://objstore.example/bucket/%d-%s", f.calls, filename), nil
}

type fakeRecords struct {
	count      int64
	saveErr    error
	saveCalls  int
	countCalls int
	saved      []Image
}

func (f *fakeRecords) Save(ctx context.Context, img *Image) (*Image, error) {
	f.saveCalls++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	out := *img
	out.ID = fmt.Sprintf("img-%d", f.saveCalls)
	f.saved = append(f.saved, out)
	return &out, nil
}

func (f *fakeRecords) CountByUser(ctx context.Context, userID string) (int64, error) {
	f.countCalls++
	return f.count, nil
}

func (f *fakeRecords) ListByUser(ctx context.Context, userID string) ([]Image, error) {
	return f.saved, nil
}

type fakeUsers struct {
	u   *user.User
	err error
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.u, nil
}

func cap32(n int32) *int32 { return &n }

func planUser(maxImages *int32) *user.User {
	return &user.User{
		ID:    "user-1",
		Email: "jane@example.com",
		Plan:  &user.Plan{ID: "plan-1", Name: "pro", MaxImages: maxImages},
	}
}

func newTestService(m *fakeModerator, st *fakeStore, rec *fakeRecords, us *fakeUsers) *Service {
	return NewService(rec, us, st, m, zerolog.Nop())
}

func TestUploadModerationRejectSkipsStorageAndPersistence(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: false, Category: "weapon", Score: 0.92}}
	st := &fakeStore{}
	rec := &fakeRecords{}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(nil)})

	img, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")

	require.ErrorIs(t, err, ErrContentRejected)
	assert.Nil(t, img)
	assert.Equal(t, 0, st.calls, "storage must not be called for rejected content")
	assert.Equal(t, 0, rec.saveCalls, "no record may be created for rejected content")
}

func TestUploadModerationUnavailableFailsClosed(t *testing.T) {
	m := &fakeModerator{err: fmt.Errorf("%w: connection refused", moderation.ErrUnavailable)}
	st := &fakeStore{}
	rec := &fakeRecords{}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(nil)})

	_, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")

	require.ErrorIs(t, err, moderation.ErrUnavailable)
	assert.Equal(t, 0, st.calls)
	assert.Equal(t, 0, rec.saveCalls)
}

func TestUploadQuotaExceededSkipsStorage(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{}
	rec := &fakeRecords{count: 3}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(cap32(3))})

	_, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")

	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 1, rec.countCalls, "count must be fetched fresh before the check")
	assert.Equal(t, 0, st.calls, "storage must not be called when over quota")
	assert.Equal(t, 0, rec.saveCalls)
}

func TestUploadNoPlanIgnoresCount(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{}
	rec := &fakeRecords{count: 1_000_000}
	u := &user.User{ID: "user-1", Email: "jane@example.com"}
	svc := newTestService(m, st, rec, &fakeUsers{u: u})

	img, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")

	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, 1, st.calls)
}

func TestUploadUncappedPlanIgnoresCount(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{}
	rec := &fakeRecords{count: 1_000_000}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(nil)})

	_, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")

	require.NoError(t, err)
	assert.Equal(t, 1, st.calls)
}

func TestUploadEndToEndRecord(t *testing.T) {
	payload := []byte("fake png bytes")
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{locator: "https://objstore.example/bucket/abc-photo.png"}
	rec := &fakeRecords{count: 2}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(cap32(5))})

	img, err := svc.Upload(context.Background(), payload, "image/png", "photo.png", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "https://objstore.example/bucket/abc-photo.png", img.URL)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, int64(len(payload)), img.FileSize)
	assert.Equal(t, "photo.png", img.Filename)
	assert.Equal(t, "user-1", img.UserID)
	assert.False(t, img.UploadedAt.IsZero())
	assert.NotEmpty(t, img.ID)
}

func TestUploadRepeatedProducesDistinctRecords(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{}
	rec := &fakeRecords{}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(nil)})

	first, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.URL, second.URL, "storage keys must never collide")
}

func TestUploadStorageFailureCreatesNoRecord(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{err: errors.New("connection reset")}
	rec := &fakeRecords{}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(nil)})

	_, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")

	require.ErrorIs(t, err, ErrStorageFailed)
	assert.Equal(t, 0, rec.saveCalls, "no partial record on storage failure")
}

func TestUploadPersistFailureIsDistinctAndNotRetried(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{}
	rec := &fakeRecords{saveErr: errors.New("deadlock detected")}
	svc := newTestService(m, st, rec, &fakeUsers{u: planUser(nil)})

	_, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "user-1")

	require.ErrorIs(t, err, ErrPersistFailed)
	assert.NotErrorIs(t, err, ErrStorageFailed)
	assert.Equal(t, 1, st.calls, "storage must be called exactly once, no retry")
	assert.Equal(t, 1, rec.saveCalls)
}

func TestUploadUnknownUser(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{}
	rec := &fakeRecords{}
	svc := newTestService(m, st, rec, &fakeUsers{err: user.ErrNotFound})

	_, err := svc.Upload(context.Background(), []byte("payload"), "image/png", "photo.png", "ghost")

	require.ErrorIs(t, err, user.ErrNotFound)
	assert.Equal(t, 0, st.calls)
}
