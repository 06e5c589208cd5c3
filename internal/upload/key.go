package upload

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectKey builds {folder}/{unixMillis}-{random}.{ext}. The random part
// keeps keys unique when two uploads land in the same millisecond.
func ObjectKey(folder string, at time.Time, contentType string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s/%d-%s.%s", folder, at.UnixMilli(), random, Extension(contentType))
}

// Extension maps an image content type to a file extension, png by default.
func Extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
