// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package fsx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local reads from the operating system filesystem.
type Local struct{}

// NewLocal returns a local filesystem.
func NewLocal() *Local {
	return &Local{}
}

// Qualify resolves a path to its absolute form.
func (l *Local) Qualify(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("qualify %s: %w", path, err)
	}
	return abs, nil
}

// Stat returns metadata for a path.
func (l *Local) Stat(_ context.Context, path string) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileInfo{Path: path, Dir: st.IsDir(), Size: st.Size()}, nil
}

// List returns the immediate children of a directory in lexical order.
func (l *Local) List(_ context.Context, path string) ([]FileInfo, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		fi := FileInfo{
			Path: filepath.Join(path, e.Name()),
			Dir:  e.IsDir(),
		}
		if info, err := e.Info(); err == nil {
			fi.Size = info.Size()
		}
		infos = append(infos, fi)
	}
	return infos, nil
}

// Open opens a file for reading.
func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
