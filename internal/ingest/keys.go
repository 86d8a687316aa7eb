package ingest

import (
	"net/url"
	"path"
	"strings"

	apperrors "github.com/socialchef/scribe/internal/errors"
)

const transcriptExt = ".txt"

// DecodeKey undoes the form encoding S3 applies to object keys in event
// notifications ("+" for space, %XX for everything else).
func DecodeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		appErr := apperrors.NewValidationError("invalid object key "+raw, "INVALID_OBJECT_KEY", "Check the key encoding of the event record.")
		appErr.Err = err
		return "", appErr
	}
	return key, nil
}

// TranscriptKey replaces the final extension of key's last path segment with
// ".txt". Leading dots of the file name are not treated as an extension, and
// dots in directory names are ignored.
func TranscriptKey(key string) string {
	dir, file := path.Split(key)
	ext := path.Ext(strings.TrimLeft(file, "."))
	return dir + strings.TrimSuffix(file, ext) + transcriptExt
}
