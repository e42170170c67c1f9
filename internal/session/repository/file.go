package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Cipher encrypts snapshot bytes at rest. *security.Sealer implements it.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// FileBackend stores each key as a file under dir. Writes go to a temp file that is
// renamed over the target, so readers never see a partial snapshot.
type FileBackend struct {
	fs     afero.Fs
	dir    string
	cipher Cipher
}

// NewFileBackend returns a FileBackend rooted at dir on fsys. cipher may be nil for
// plaintext storage.
func NewFileBackend(fsys afero.Fs, dir string, cipher Cipher) *FileBackend {
	return &FileBackend{fs: fsys, dir: dir, cipher: cipher}
}

// NewOSFileBackend returns a FileBackend on the OS filesystem.
func NewOSFileBackend(dir string, cipher Cipher) *FileBackend {
	return NewFileBackend(afero.NewOsFs(), dir, cipher)
}

func (b *FileBackend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(b.dir, key+".json"), nil
}

func (b *FileBackend) Load(ctx context.Context, key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(b.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if b.cipher == nil {
		return data, nil
	}
	return b.cipher.Open(data)
}

func (b *FileBackend) Save(ctx context.Context, key string, data []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if b.cipher != nil {
		if data, err = b.cipher.Seal(data); err != nil {
			return err
		}
	}
	if err := b.fs.MkdirAll(b.dir, 0o700); err != nil {
		return err
	}
	tmp, err := afero.TempFile(b.fs, b.dir, "."+key+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = b.fs.Remove(tmpName)
		return err
	}
	if err := b.fs.Chmod(tmpName, 0o600); err != nil {
		_ = b.fs.Remove(tmpName)
		return err
	}
	if err := b.fs.Rename(tmpName, p); err != nil {
		_ = b.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (b *FileBackend) Delete(ctx context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
