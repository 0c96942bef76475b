package filebroker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reserved metadata keys. Everything this system writes into the backend's
// flat user-metadata map is namespaced under the x-record- prefix so it can
// never collide with backend-reserved headers or caller-chosen keys.
const (
	metaKeyID        = "x-record-id"
	metaKeyContentID = "x-record-content-id"
	metaKeyCreatedAt = "x-record-created-at"
	metaKeyExpiresAt = "x-record-expires-at"
	metaKeyFileName  = "x-record-file-name"
	metaPrefix       = "x-record-metadata-"
)

// recordMeta is the decoded form of a metadata object's user metadata: the
// fixed file record fields plus the caller's typed metadata entries.
type recordMeta struct {
	ID         string
	ContentKey string
	FileName   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Metadata   map[string]Value
}

// encodeRecordMeta flattens a record into the string key-value map the
// backend attaches to objects. Caller metadata values are serialized to their
// compact JSON form under the reserved metadata prefix. Timestamps are
// canonical RFC 3339 UTC.
func encodeRecordMeta(rec recordMeta) (map[string]string, error) {
	out := make(map[string]string, len(rec.Metadata)+5)
	out[metaKeyID] = rec.ID
	out[metaKeyCreatedAt] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	out[metaKeyExpiresAt] = rec.ExpiresAt.UTC().Format(time.RFC3339Nano)
	if rec.ContentKey != "" {
		out[metaKeyContentID] = rec.ContentKey
	}
	if rec.FileName != "" {
		out[metaKeyFileName] = rec.FileName
	}
	for key, value := range rec.Metadata {
		text, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode metadata entry %q: %w", key, err)
		}
		out[metaPrefix+key] = string(text)
	}
	return out, nil
}

// decodeRecordMeta is the inverse of encodeRecordMeta. A missing or malformed
// required field signals ErrMetadataCorrupted: it indicates backend-side
// corruption or a key written outside this system's control, and must not be
// silently defaulted. requireContentKey is set by the placeholder strategy,
// which cannot reach content without the reference.
func decodeRecordMeta(meta map[string]string, requireContentKey bool) (*recordMeta, error) {
	id, err := requiredField(meta, metaKeyID)
	if err != nil {
		return nil, err
	}
	createdAt, err := requiredTimeField(meta, metaKeyCreatedAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := requiredTimeField(meta, metaKeyExpiresAt)
	if err != nil {
		return nil, err
	}

	rec := &recordMeta{
		ID:         id,
		FileName:   meta[metaKeyFileName],
		ContentKey: meta[metaKeyContentID],
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		Metadata:   make(map[string]Value),
	}
	if requireContentKey && rec.ContentKey == "" {
		return nil, fmt.Errorf("%w: missing field %s", ErrMetadataCorrupted, metaKeyContentID)
	}

	for key, text := range meta {
		if !strings.HasPrefix(key, metaPrefix) || text == "" {
			continue
		}
		var value Value
		if err := json.Unmarshal([]byte(text), &value); err != nil {
			return nil, fmt.Errorf("%w: bad metadata entry %q: %v", ErrMetadataCorrupted, key, err)
		}
		rec.Metadata[strings.TrimPrefix(key, metaPrefix)] = value
	}
	return rec, nil
}

func requiredField(meta map[string]string, key string) (string, error) {
	v, ok := meta[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing field %s", ErrMetadataCorrupted, key)
	}
	return v, nil
}

func requiredTimeField(meta map[string]string, key string) (time.Time, error) {
	v, err := requiredField(meta, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp in field %s: %v", ErrMetadataCorrupted, key, err)
	}
	return t, nil
}

const filenameParam = "filename="

// fileNameFromDisposition extracts the file name from a Content-Disposition
// header, e.g. `attachment;filename="report.pdf"`.
func fileNameFromDisposition(disposition string) (string, bool) {
	idx := strings.LastIndex(disposition, filenameParam)
	if idx < 0 {
		return "", false
	}
	name := disposition[idx+len(filenameParam):]
	name = strings.Trim(name, `"`)
	if name == "" {
		return "", false
	}
	return name, true
}

// dispositionForFileName builds the Content-Disposition header carried by a
// content object.
func dispositionForFileName(fileName string) string {
	return fmt.Sprintf("attachment;filename=%q", fileName)
}
