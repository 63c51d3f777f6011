package image

import (
	"errors"
	"io"
	"net/http"

	"github.com/imagelify/api/internal/middleware"
	"github.com/imagelify/api/internal/moderation"
	"github.com/imagelify/api/internal/response"
	"github.com/imagelify/api/internal/user"
)

// maxUploadBytes caps the multipart request body.
const maxUploadBytes = 16 << 20

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new image Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Runs the file through content moderation and the plan quota check, stores it, and returns the created record.
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	response.Envelope{data=Image}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope	"plan quota exceeded"
//	@Failure		404		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope	"content policy violation"
//	@Failure		503		{object}	response.Envelope	"moderation provider unavailable"
//	@Failure		500		{object}	response.Envelope
//	@Router			/images/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "could not read uploaded file")
		return
	}
	if len(data) == 0 {
		response.BadRequest(w, "uploaded file is empty")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	img, err := h.svc.Upload(r.Context(), data, contentType, header.Filename, userID)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	response.Created(w, img)
}

// writeUploadError maps the pipeline error taxonomy onto distinct statuses.
func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrContentRejected):
		response.PayloadTooLarge(w, "image contains inappropriate content and cannot be uploaded")
	case errors.Is(err, moderation.ErrUnavailable):
		response.ServiceUnavailable(w, "content moderation is unavailable, please retry later")
	case errors.Is(err, ErrQuotaExceeded):
		response.Forbidden(w, "image upload limit reached, upgrade your plan to store more images")
	case errors.Is(err, user.ErrNotFound):
		response.NotFound(w, "user not found")
	default:
		response.InternalError(w)
	}
}

// List godoc
//
//	@Summary		List images
//	@Description	Returns all image records owned by the authenticated user, newest first.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Image}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	images, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, images)
}
