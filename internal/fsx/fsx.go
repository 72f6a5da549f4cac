// Copyright (c) 2025 Netskope, Inc. All rights reserved.

// Package fsx abstracts the filesystems an export can read from. The
// orchestration layer only needs to qualify paths, stat them, list
// directories, and open files for reading; both the local filesystem and
// S3 object storage satisfy that surface.
package fsx

import (
	"context"
	"io"
	"strings"
)

// FileInfo describes a single entry in a filesystem.
type FileInfo struct {
	Path string // qualified path of the entry
	Dir  bool
	Size int64
}

// FileSystem is the read-side filesystem surface consumed by the export
// orchestration layer.
type FileSystem interface {
	// Qualify resolves a path to its absolute, scheme-qualified form.
	Qualify(path string) (string, error)
	// Stat returns metadata for a path. Returns an error wrapping
	// fs.ErrNotExist when the path does not exist.
	Stat(ctx context.Context, path string) (FileInfo, error)
	// List returns the immediate children of a directory.
	List(ctx context.Context, path string) ([]FileInfo, error)
	// Open opens a file for reading. The caller must close the reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// IsS3Path reports whether path addresses S3 object storage.
func IsS3Path(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// Resolve picks the filesystem backend for a path: S3 for s3:// URLs,
// the local filesystem otherwise.
func Resolve(ctx context.Context, path, region string) (FileSystem, error) {
	if IsS3Path(path) {
		return NewS3(ctx, region)
	}
	return NewLocal(), nil
}
