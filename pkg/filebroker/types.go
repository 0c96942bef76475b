package filebroker

import (
	"time"
)

// FileRecord is the logical identity of a file. It is created once and never
// updated; the only mutable fact about a file lives in the backend (whether
// its content object exists yet).
type FileRecord struct {
	ID        string           `json:"id"`
	FileName  string           `json:"file_name"`
	CreatedAt time.Time        `json:"created_at"`
	Metadata  map[string]Value `json:"metadata"`
}

// NewFileResult is returned by CreateFile: the minted file id plus a
// presigned URL the client uses to upload content directly to the backend.
type NewFileResult struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
}
