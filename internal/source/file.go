package source

import (
	"context"
	"fmt"
	"os"
)

// File reads the dataset from disk, plain text or a zip archive.
type File struct {
	Path   string
	Member string
}

func (f *File) Name() string { return "file:" + f.Path }

func (f *File) FetchRaw(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading postal data file: %w", err)
	}
	return unpack(data, f.Member)
}
