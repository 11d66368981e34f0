package fsx

import (
	"context"
	"io"
)

// Mux routes each call to a FileSystem by the path's URI scheme. Plain
// paths go to Default.
type Mux struct {
	Default FileSystem
	schemes map[string]FileSystem
}

// NewMux creates a mux over a default file system
func NewMux(def FileSystem) *Mux {
	return &Mux{Default: def, schemes: make(map[string]FileSystem)}
}

// Handle registers a file system for a scheme such as "s3"
func (m *Mux) Handle(scheme string, fs FileSystem) *Mux {
	m.schemes[scheme] = fs
	return m
}

func (m *Mux) route(path string) (FileSystem, error) {
	scheme := Scheme(path)
	if scheme == "" || scheme == "file" {
		if m.Default == nil {
			return nil, ErrRegistry.New(ErrInvalidPath).WithDetail("path", path)
		}
		return m.Default, nil
	}
	fs, ok := m.schemes[scheme]
	if !ok {
		return nil, ErrRegistry.NewWithMessage(ErrInvalidPath, "no file system for scheme "+scheme).
			WithDetail("path", path)
	}
	return fs, nil
}

func (m *Mux) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fs, err := m.route(path)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(ctx, path)
}

func (m *Mux) ReadFileStream(ctx context.Context, path string) (io.ReadCloser, error) {
	fs, err := m.route(path)
	if err != nil {
		return nil, err
	}
	return fs.ReadFileStream(ctx, path)
}

func (m *Mux) Stat(ctx context.Context, path string) (FileInfo, error) {
	fs, err := m.route(path)
	if err != nil {
		return FileInfo{}, err
	}
	return fs.Stat(ctx, path)
}

func (m *Mux) List(ctx context.Context, path string) ([]FileInfo, error) {
	fs, err := m.route(path)
	if err != nil {
		return nil, err
	}
	return fs.List(ctx, path)
}

func (m *Mux) WriteFile(ctx context.Context, path string, data []byte) error {
	fs, err := m.route(path)
	if err != nil {
		return err
	}
	return fs.WriteFile(ctx, path, data)
}

func (m *Mux) WriteFileStream(ctx context.Context, path string, r io.Reader) error {
	fs, err := m.route(path)
	if err != nil {
		return err
	}
	return fs.WriteFileStream(ctx, path, r)
}

func (m *Mux) CreateDir(ctx context.Context, path string) error {
	fs, err := m.route(path)
	if err != nil {
		return err
	}
	return fs.CreateDir(ctx, path)
}

func (m *Mux) DeleteFile(ctx context.Context, path string) error {
	fs, err := m.route(path)
	if err != nil {
		return err
	}
	return fs.DeleteFile(ctx, path)
}

func (m *Mux) DeleteDir(ctx context.Context, path string, recursive bool) error {
	fs, err := m.route(path)
	if err != nil {
		return err
	}
	return fs.DeleteDir(ctx, path, recursive)
}

// Join uses the scheme of the first element
func (m *Mux) Join(elem ...string) string {
	if len(elem) == 0 {
		return ""
	}
	fs, err := m.route(elem[0])
	if err != nil {
		return ""
	}
	return fs.Join(elem...)
}

func (m *Mux) Exists(ctx context.Context, path string) (bool, error) {
	fs, err := m.route(path)
	if err != nil {
		return false, err
	}
	return fs.Exists(ctx, path)
}
