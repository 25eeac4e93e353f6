package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DiskStorage stores blobs as files below BasePath
type DiskStorage struct {
	BasePath  string
	baseURL   string
	dirs      map[string]bool
	dirsMutex sync.Mutex
}

// NewDiskStorage creates a disk storage rooted at basePath and served under baseURL
func NewDiskStorage(basePath, baseURL string) *DiskStorage {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &DiskStorage{
		BasePath: basePath,
		baseURL:  baseURL,
		dirs:     make(map[string]bool, 10),
	}
}

func (s *DiskStorage) createDir(dir string) error {
	s.dirsMutex.Lock()
	defer s.dirsMutex.Unlock()

	if ok := s.dirs[dir]; ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s.dirs[dir] = true
	return nil
}

func (s *DiskStorage) fullPath(name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.BasePath, filepath.FromSlash(name)), nil
}

func (s *DiskStorage) Save(_ context.Context, name string, r io.Reader, _ string) error {
	fileName, err := s.fullPath(name)
	if err != nil {
		return err
	}
	if err := s.createDir(filepath.Dir(fileName)); err != nil {
		return err
	}
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		_ = os.Remove(fileName)
		return err
	}
	return file.Close()
}

func (s *DiskStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	fileName, err := s.fullPath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Directories are not blobs
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, ErrNotFound
	}
	return file, nil
}

func (s *DiskStorage) Delete(_ context.Context, name string) error {
	fileName, err := s.fullPath(name)
	if err != nil {
		return err
	}
	err = os.Remove(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *DiskStorage) URL(name string) string {
	return s.baseURL + strings.TrimPrefix(name, "/")
}
