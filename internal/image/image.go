// Package image implements the upload admission pipeline: content moderation,
// plan quota enforcement, object storage, and metadata persistence, in that
// fixed order.
package image

import (
	"time"
)

// Image is the metadata record for one stored upload. A record exists only
// for uploads that passed moderation and quota and were written to the object
// store; it is never mutated after creation.
type Image struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	FileSize   int64     `json:"fileSize"`
	MimeType   string    `json:"mimeType"`
	UploadedAt time.Time `json:"uploadedAt"`
	UserID     string    `json:"userId"`
}
