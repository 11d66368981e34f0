package localfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/fsx"
)

// FileSystem is the local disk. Relative paths resolve against root when
// root is set; "file://" prefixes are accepted.
type FileSystem struct {
	root string
}

var _ fsx.FileSystem = (*FileSystem)(nil)

// New creates a local file system rooted at root ("" for the working directory)
func New(root string) *FileSystem {
	return &FileSystem{root: root}
}

func (l *FileSystem) resolve(path string) string {
	path = strings.TrimPrefix(path, "file://")
	if l.root != "" && !filepath.IsAbs(path) {
		return filepath.Join(l.root, path)
	}
	return path
}

func wrap(err error, code errx.Code, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fsx.ErrRegistry.NewWithCause(fsx.ErrNotFound, err).WithDetail("path", path)
	}
	return fsx.ErrRegistry.NewWithCause(code, err).WithDetail("path", path)
}

func (l *FileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return nil, wrap(err, fsx.ErrReadFailed, path)
	}
	return data, nil
}

func (l *FileSystem) ReadFileStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.resolve(path))
	if err != nil {
		return nil, wrap(err, fsx.ErrReadFailed, path)
	}
	return f, nil
}

func (l *FileSystem) Stat(ctx context.Context, path string) (fsx.FileInfo, error) {
	info, err := os.Stat(l.resolve(path))
	if err != nil {
		return fsx.FileInfo{}, wrap(err, fsx.ErrReadFailed, path)
	}
	return toFileInfo(info), nil
}

func toFileInfo(info fs.FileInfo) fsx.FileInfo {
	return fsx.FileInfo{
		Name:        info.Name(),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		IsDir:       info.IsDir(),
		ContentType: mime.TypeByExtension(filepath.Ext(info.Name())),
	}
}

func (l *FileSystem) List(ctx context.Context, path string) ([]fsx.FileInfo, error) {
	entries, err := os.ReadDir(l.resolve(path))
	if err != nil {
		return nil, wrap(err, fsx.ErrReadFailed, path)
	}
	out := make([]fsx.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, toFileInfo(info))
	}
	return out, nil
}

func (l *FileSystem) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return wrap(err, fsx.ErrWriteFailed, path)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return wrap(err, fsx.ErrWriteFailed, path)
	}
	return nil
}

func (l *FileSystem) WriteFileStream(ctx context.Context, path string, r io.Reader) error {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return wrap(err, fsx.ErrWriteFailed, path)
	}
	f, err := os.Create(full)
	if err != nil {
		return wrap(err, fsx.ErrWriteFailed, path)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return wrap(err, fsx.ErrWriteFailed, path)
	}
	if err := f.Close(); err != nil {
		return wrap(err, fsx.ErrWriteFailed, path)
	}
	return nil
}

func (l *FileSystem) CreateDir(ctx context.Context, path string) error {
	if err := os.MkdirAll(l.resolve(path), 0o755); err != nil {
		return wrap(err, fsx.ErrWriteFailed, path)
	}
	return nil
}

func (l *FileSystem) DeleteFile(ctx context.Context, path string) error {
	if err := os.Remove(l.resolve(path)); err != nil {
		return wrap(err, fsx.ErrDeleteFailed, path)
	}
	return nil
}

func (l *FileSystem) DeleteDir(ctx context.Context, path string, recursive bool) error {
	full := l.resolve(path)
	var err error
	if recursive {
		err = os.RemoveAll(full)
	} else {
		err = os.Remove(full)
	}
	if err != nil {
		return wrap(err, fsx.ErrDeleteFailed, path)
	}
	return nil
}

func (l *FileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

func (l *FileSystem) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, wrap(err, fsx.ErrReadFailed, path)
}
