package evidence

import (
	"errors"
	"time"
)

var (
	ErrEvidenceNotFound = errors.New("evidence not found")
	ErrAlreadyDeleted   = errors.New("evidence already deleted")
	ErrNotDeleted       = errors.New("evidence is not deleted")
)

// Evidence is the metadata of one supporting document. File contents
// live in external storage and are out of scope here; only the linkage
// and the active/deleted status matter to the ledger. Deletion is a
// tombstone flag, never a physical removal, so the audit story stays
// intact.
type Evidence struct {
	ID         string     `json:"id"`
	ProjectID  int64      `json:"projectId"`
	Name       string     `json:"name"`
	MimeType   string     `json:"mimeType"`
	Version    int        `json:"version"`
	PreviousID *string    `json:"previousId,omitempty"`
	UploadedBy *int64     `json:"uploadedBy,omitempty"`
	UploadedAt time.Time  `json:"uploadedAt"`
	Deleted    bool       `json:"deleted"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	DeletedBy  *int64     `json:"deletedBy,omitempty"`
}

// CreateParams contains parameters for registering evidence metadata.
type CreateParams struct {
	ID         string
	ProjectID  int64
	Name       string
	MimeType   string
	PreviousID *string
	UploadedBy *int64
}
