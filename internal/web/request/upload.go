package request

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	// ErrFileTooLarge is returned for uploads above MaxFileSize
	ErrFileTooLarge = errors.New("file is too large")
	// ErrFileEmpty is returned for zero-byte uploads
	ErrFileEmpty = errors.New("file is empty")
	// ErrFileType is returned when the sniffed content type is not allowed
	ErrFileType = errors.New("file type is not allowed")
)

// UploadConfig configures file upload handling
type UploadConfig struct {
	MaxFileSize  int64    // Maximum size per file (in bytes)
	AllowedTypes []string // Allowed MIME types or prefixes such as "image/"
}

// ImageUploadConfig accepts images up to maxSize bytes
func ImageUploadConfig(maxSize int64) UploadConfig {
	return UploadConfig{
		MaxFileSize:  maxSize,
		AllowedTypes: []string{"image/"},
	}
}

// UploadedFile is a validated upload ready to be stored.
// Callers must Close it.
type UploadedFile struct {
	Filename    string
	Size        int64
	ContentType string
	multipart.File
}

// FileUploader validates uploaded files
type FileUploader struct {
	config UploadConfig
}

// NewFileUploader creates a new file uploader with config
func NewFileUploader(config UploadConfig) *FileUploader {
	return &FileUploader{config: config}
}

// Open validates header and opens it for reading. The content type is
// sniffed from the file itself, not trusted from the client.
func (u *FileUploader) Open(header *multipart.FileHeader) (*UploadedFile, error) {
	if header.Size == 0 {
		return nil, ErrFileEmpty
	}
	if u.config.MaxFileSize > 0 && header.Size > u.config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrFileTooLarge, header.Size, u.config.MaxFileSize)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to rewind upload: %w", err)
	}

	contentType := sniffContentType(buffer[:n])
	if len(u.config.AllowedTypes) > 0 && !isTypeAllowed(contentType, u.config.AllowedTypes) {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrFileType, contentType)
	}

	return &UploadedFile{
		Filename:    sanitizeFilename(header.Filename),
		Size:        header.Size,
		ContentType: contentType,
		File:        file,
	}, nil
}

// sniffContentType detects the media type from content, without parameters
func sniffContentType(head []byte) string {
	detected := http.DetectContentType(head)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	return detected
}

// isTypeAllowed checks if a content type is in the allowed list
func isTypeAllowed(contentType string, allowedTypes []string) bool {
	for _, allowed := range allowedTypes {
		// Allow exact matches or prefix matches (e.g., "image/" matches "image/jpeg")
		if contentType == allowed || strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

// sanitizeFilename strips directories so the name is safe inside a URL path
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
