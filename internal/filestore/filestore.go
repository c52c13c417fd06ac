// Package filestore keeps uploaded CV files. Records only hold the returned key.
package filestore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/moverq1337/hireboard/internal/apperrors"
)

type Store interface {
	// Save stores data and returns the key to reach it later. name is only
	// used for its extension.
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes the file. A missing file is not an error.
	Remove(ctx context.Context, key string) error
}

// NewKey returns a fresh storage key that keeps the lowercased extension of name.
func NewKey(name string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(name))
}

func checkKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return apperrors.Validation("key", "must be a plain file name")
	}
	return nil
}

// Local stores files in a directory through afero.
type Local struct {
	fs afero.Fs
}

var _ Store = (*Local)(nil)

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, "create upload dir %s", dir)
	}
	return &Local{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// NewMemory keeps files in memory.
func NewMemory() *Local {
	return &Local{fs: afero.NewMemMapFs()}
}

func (l *Local) Save(_ context.Context, name string, data []byte) (string, error) {
	key := NewKey(name)
	tmp := key + ".part"
	if err := afero.WriteFile(l.fs, tmp, data, 0o644); err != nil {
		return "", apperrors.Wrap(err, "write cv file")
	}
	if err := l.fs.Rename(tmp, key); err != nil {
		_ = l.fs.Remove(tmp)
		return "", apperrors.Wrap(err, "commit cv file")
	}
	return key, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := l.fs.Open(key)
	if apperrors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound("cv file")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "open cv file")
	}
	return f, nil
}

func (l *Local) Remove(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil && !apperrors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(err, "remove cv file")
	}
	return nil
}
