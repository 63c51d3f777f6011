package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagelify/api/internal/middleware"
	"github.com/imagelify/api/internal/moderation"
	"github.com/imagelify/api/internal/response"
	"github.com/imagelify/api/internal/user"
)

func uploadRequest(t *testing.T, userID string) *http.Request {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake png bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != "" {
		ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
		req = req.WithContext(ctx)
	}
	return req
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func TestUploadHandlerStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		moderator  *fakeModerator
		store      *fakeStore
		records    *fakeRecords
		users      *fakeUsers
		wantStatus int
	}{
		{
			name:       "content rejection maps to 413",
			moderator:  &fakeModerator{decision: moderation.Decision{Admitted: false, Category: "gore", Score: 0.8}},
			store:      &fakeStore{},
			records:    &fakeRecords{},
			users:      &fakeUsers{u: planUser(nil)},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "moderation outage maps to 503",
			moderator:  &fakeModerator{err: fmt.Errorf("%w: timeout", moderation.ErrUnavailable)},
			store:      &fakeStore{},
			records:    &fakeRecords{},
			users:      &fakeUsers{u: planUser(nil)},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "quota exceeded maps to 403",
			moderator:  &fakeModerator{decision: moderation.Decision{Admitted: true}},
			store:      &fakeStore{},
			records:    &fakeRecords{count: 3},
			users:      &fakeUsers{u: planUser(cap32(3))},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unknown user maps to 404",
			moderator:  &fakeModerator{decision: moderation.Decision{Admitted: true}},
			store:      &fakeStore{},
			records:    &fakeRecords{},
			users:      &fakeUsers{err: user.ErrNotFound},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "storage failure maps to 500",
			moderator:  &fakeModerator{decision: moderation.Decision{Admitted: true}},
			store:      &fakeStore{err: errors.New("boom")},
			records:    &fakeRecords{},
			users:      &fakeUsers{u: planUser(nil)},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "persistence failure maps to 500",
			moderator:  &fakeModerator{decision: moderation.Decision{Admitted: true}},
			store:      &fakeStore{},
			records:    &fakeRecords{saveErr: errors.New("boom")},
			users:      &fakeUsers{u: planUser(nil)},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newTestService(tt.moderator, tt.store, tt.records, tt.users))

			rr := httptest.NewRecorder()
			h.Upload(rr, uploadRequest(t, "user-1"))

			assert.Equal(t, tt.wantStatus, rr.Code)
			env := decodeEnvelope(t, rr)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestUploadHandlerSuccess(t *testing.T) {
	m := &fakeModerator{decision: moderation.Decision{Admitted: true}}
	st := &fakeStore{locator: "https://objstore.example/bucket/abc-photo.png"}
	rec := &fakeRecords{}
	h := NewHandler(newTestService(m, st, rec, &fakeUsers{u: planUser(cap32(5))}))

	rr := httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "user-1"))

	require.Equal(t, http.StatusCreated, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.True(t, env.Success)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://objstore.example/bucket/abc-photo.png", data["url"])
	assert.Equal(t, "photo.png", data["filename"])
}

func TestUploadHandlerRequiresAuth(t *testing.T) {
	h := NewHandler(newTestService(&fakeModerator{}, &fakeStore{}, &fakeRecords{}, &fakeUsers{}))

	rr := httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, ""))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUploadHandlerMissingFile(t *testing.T) {
	h := NewHandler(newTestService(&fakeModerator{}, &fakeStore{}, &fakeRecords{}, &fakeUsers{u: planUser(nil)}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images/upload", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "user-1"))

	rr := httptest.NewRecorder()
	h.Upload(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListHandlerReturnsOwnedImages(t *testing.T) {
	rec := &fakeRecords{saved: []Image{{ID: "img-1", UserID: "user-1", URL: "https://objstore.example/bucket/a.png"}}}
	h := NewHandler(newTestService(&fakeModerator{}, &fakeStore{}, rec, &fakeUsers{u: planUser(nil)}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "user-1"))

	rr := httptest.NewRecorder()
	h.List(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.True(t, env.Success)

	items, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 1)
}
