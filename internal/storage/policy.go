package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// AssetPolicy constrains uploads referenced by image and documentHeader
// elements
type AssetPolicy struct {
	MaxFileMB  float64  `json:"maxFileMB"`
	MimeTypes  []string `json:"mime"`
	Extensions []string `json:"extensions"`
}

// ImagePolicy accepts common raster and vector images up to 2 MB
func ImagePolicy() *AssetPolicy {
	return &AssetPolicy{
		MaxFileMB:  2,
		MimeTypes:  []string{"image/png", "image/jpeg", "image/gif", "image/svg+xml", "image/webp"},
		Extensions: []string{"png", "jpg", "jpeg", "gif", "svg", "webp"},
	}
}

// MaxBytes is the size limit in bytes; zero means unlimited
func (p *AssetPolicy) MaxBytes() int64 {
	if p == nil || p.MaxFileMB <= 0 {
		return 0
	}
	return int64(p.MaxFileMB * 1024 * 1024)
}

// ValidateFile validates a file against the policy
func (p *AssetPolicy) ValidateFile(fileName, contentType string, fileSizeBytes int64) error {
	if p == nil {
		return nil
	}

	if max := p.MaxBytes(); max > 0 && fileSizeBytes > max {
		return fmt.Errorf("file size %d bytes exceeds maximum %d bytes (%.2f MB)", fileSizeBytes, max, p.MaxFileMB)
	}

	if len(p.MimeTypes) > 0 && !p.matchesMimeType(contentType) {
		return fmt.Errorf("content type %s is not allowed. Allowed types: %v", contentType, p.MimeTypes)
	}

	if len(p.Extensions) > 0 && !p.matchesExtension(fileName) {
		return fmt.Errorf("file extension is not allowed. Allowed extensions: %v", p.Extensions)
	}

	return nil
}

// matchesMimeType supports wildcard patterns like "image/*"
func (p *AssetPolicy) matchesMimeType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	for _, allowed := range p.MimeTypes {
		if strings.HasSuffix(allowed, "/*") {
			if strings.HasPrefix(mediaType, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		} else if mediaType == allowed {
			return true
		}
	}
	return false
}

func (p *AssetPolicy) matchesExtension(fileName string) bool {
	ext := Extension(fileName)
	if ext == "" {
		return false
	}
	for _, allowed := range p.Extensions {
		if ext == strings.ToLower(strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}

// Extension returns the lower-case extension of fileName without the dot
func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}
