// Package catalog provides the static recipe table used when every search
// provider fails. The built-in table can be replaced by a JSON document read
// from a file or from S3.
package catalog

import (
	"context"
	"errors"
	"os"
)

// Source yields the raw JSON catalog document.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

type FileSource struct {
	FilePath string
}

func NewFileSource(filePath string) *FileSource {
	return &FileSource{FilePath: filePath}
}

func (s *FileSource) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(s.FilePath)
}

// MemorySource is an in-memory Source, handy in tests.
type MemorySource struct {
	data []byte
	err  error
}

func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

func NewMemorySourceWithError() *MemorySource {
	return &MemorySource{err: errors.New("not found")}
}

func (s *MemorySource) Load(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}
