// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/bep/asynctiff"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/mmap"
)

var _ asynctiff.RangeSource = (*File)(nil)

// File is a RangeSource reading memory mapped local files.
// Mapped files are kept open until Close.
type File struct {
	root string

	mu      sync.Mutex
	readers map[string]*mmap.ReaderAt
}

// NewFile returns a File source resolving relative paths against root.
// An empty root means the working directory.
func NewFile(root string) *File {
	return &File{root: root, readers: make(map[string]*mmap.ReaderAt)}
}

func (f *File) resolve(path string) string {
	if f.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.root, path)
}

func (f *File) reader(path string) (*mmap.ReaderAt, error) {
	filename := f.resolve(path)

	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.readers[filename]; ok {
		return r, nil
	}
	r, err := mmap.Open(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path)
		}
		return nil, err
	}
	f.readers[filename] = r
	return r, nil
}

func (f *File) GetRange(ctx context.Context, path string, r asynctiff.ByteRange) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ra, err := f.reader(path)
	if err != nil {
		return nil, err
	}
	start, end := clamp(r, uint64(ra.Len()))
	b := make([]byte, end-start)
	if len(b) == 0 {
		return b, nil
	}
	if _, err := ra.ReadAt(b, int64(start)); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *File) GetRanges(ctx context.Context, path string, rs []asynctiff.ByteRange) ([][]byte, error) {
	out := make([][]byte, len(rs))
	for i, r := range rs {
		b, err := f.GetRange(ctx, path, r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// NumMapped returns the number of currently mapped files.
func (f *File) NumMapped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readers)
}

// Close unmaps all files.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result *multierror.Error
	for name, r := range f.readers {
		if err := r.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		delete(f.readers, name)
	}
	return result.ErrorOrNil()
}
