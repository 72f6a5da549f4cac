// Copyright (c) 2025 Netskope, Inc. All rights reserved.

// Package format sniffs export source paths to decide whether they hold
// sequence containers or plain delimited text.
package format

import (
	"context"
	"io"

	"github.com/netSkope/db-export-tool/internal/fsx"
	"github.com/netSkope/db-export-tool/internal/seqfile"
	"go.uber.org/zap"
)

// Detected is the result of sniffing an export source path.
type Detected int

const (
	// Unreadable means the path is missing, empty, or failed to read.
	// Callers treat it as "assume plain text".
	Unreadable Detected = iota
	// PlainText means the sampled file is delimited text.
	PlainText
	// SequenceContainer means the sampled file carries the container magic.
	SequenceContainer
)

func (d Detected) String() string {
	switch d {
	case SequenceContainer:
		return "sequence"
	case PlainText:
		return "text"
	default:
		return "unreadable"
	}
}

// Detect sniffs a path to determine its content format. Directories are
// sampled: one listed child stands in for the whole directory, so detection
// costs one small file read regardless of input size. All failures degrade
// to Unreadable with a warning; Detect never returns an error.
func Detect(ctx context.Context, fs fsx.FileSystem, path string, logger *zap.Logger) Detected {
	stat, err := fs.Stat(ctx, path)
	if err != nil {
		logger.Warn("Input path does not exist or cannot be read",
			zap.String("path", path),
			zap.Error(err))
		return Unreadable
	}

	if stat.Dir {
		children, err := fs.List(ctx, path)
		if err != nil {
			logger.Warn("Input path cannot be listed",
				zap.String("path", path),
				zap.Error(err))
			return Unreadable
		}
		if len(children) == 0 {
			logger.Warn("Input path contains no files",
				zap.String("path", path))
			return Unreadable
		}
		// One child stands in for the directory. Sampling, not exhaustive.
		return Detect(ctx, fs, children[0].Path, logger)
	}

	return sniffHeader(ctx, fs, path, logger)
}

// IsSequenceFiles reports whether path refers to a sequence container, or a
// directory containing them. Usable as a standalone probe.
func IsSequenceFiles(ctx context.Context, fs fsx.FileSystem, path string, logger *zap.Logger) bool {
	return Detect(ctx, fs, path, logger) == SequenceContainer
}

// sniffHeader reads exactly the first 3 bytes of a file and compares them
// against the container magic.
func sniffHeader(ctx context.Context, fs fsx.FileSystem, path string, logger *zap.Logger) Detected {
	rc, err := fs.Open(ctx, path)
	if err != nil {
		logger.Warn("Cannot open input file for format check",
			zap.String("path", path),
			zap.Error(err))
		return Unreadable
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			logger.Warn("Error closing input file after format check",
				zap.String("path", path),
				zap.Error(cerr))
		}
	}()

	var header [3]byte
	if _, err := io.ReadFull(rc, header[:]); err != nil {
		// Short file or read error; assume not a container.
		logger.Warn("Error reading container header",
			zap.String("path", path),
			zap.Error(err))
		return Unreadable
	}

	if header == seqfile.Magic {
		return SequenceContainer
	}
	return PlainText
}
