package fsx

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/Abraxas-365/visionocr/errx"
)

var (
	ErrRegistry = errx.NewRegistry("FS")

	ErrNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, 404, "File not found")
	ErrReadFailed   = ErrRegistry.Register("READ_FAILED", errx.TypeExternal, 502, "Failed to read file")
	ErrWriteFailed  = ErrRegistry.Register("WRITE_FAILED", errx.TypeExternal, 502, "Failed to write file")
	ErrDeleteFailed = ErrRegistry.Register("DELETE_FAILED", errx.TypeExternal, 502, "Failed to delete file")
	ErrInvalidPath  = ErrRegistry.Register("INVALID_PATH", errx.TypeValidation, 400, "Invalid path")
	ErrDirNotEmpty  = ErrRegistry.Register("DIR_NOT_EMPTY", errx.TypeValidation, 409, "Directory is not empty")
)

// FileInfo represents information about a file
type FileInfo struct {
	Name        string            // Base name of the file
	Size        int64             // File size in bytes
	ModTime     time.Time         // Modification time
	IsDir       bool              // Is a directory
	ContentType string            // MIME type (when available)
	Metadata    map[string]string // Additional metadata
}

// FileSystem defines the interface for file operations
type FileSystem interface {
	// Read operations
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ReadFileStream(ctx context.Context, path string) (io.ReadCloser, error)
	Stat(ctx context.Context, path string) (FileInfo, error)
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Write operations
	WriteFile(ctx context.Context, path string, data []byte) error
	WriteFileStream(ctx context.Context, path string, r io.Reader) error
	CreateDir(ctx context.Context, path string) error

	// Delete operations
	DeleteFile(ctx context.Context, path string) error
	DeleteDir(ctx context.Context, path string, recursive bool) error

	// Path operations
	Join(elem ...string) string
	Exists(ctx context.Context, path string) (bool, error)
}

// Scheme returns the URI scheme of path ("s3" for s3://bucket/key) or ""
// for plain paths
func Scheme(path string) string {
	scheme, _, ok := strings.Cut(path, "://")
	if !ok || strings.ContainsAny(scheme, "/\\") {
		return ""
	}
	return strings.ToLower(scheme)
}
