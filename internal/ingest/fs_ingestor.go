package ingest

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/joseph-ayodele/register-extractor/internal/common"
)

// NewSubmission wraps bytes already in memory.
func NewSubmission(name string, data []byte) Submission {
	return Submission{Name: name, Data: data, Digest: xxhash.Sum64(data)}
}

// FromReader reads one upload. maxBytes <= 0 disables the size cap.
func FromReader(name string, r io.Reader, maxBytes int64) (Submission, error) {
	if strings.TrimSpace(name) == "" {
		return Submission{}, fmt.Errorf("%w: upload has no file name", common.ErrInvalidInput)
	}
	if !AllowedExt(filepath.Ext(name)) {
		return Submission{}, fmt.Errorf("%w: unsupported or missing extension: %q", common.ErrInvalidInput, filepath.Ext(name))
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return Submission{}, fmt.Errorf("read %s: %w", name, err)
	}
	if maxBytes > 0 && int64(buf.Len()) > maxBytes {
		return Submission{}, fmt.Errorf("%w: %s exceeds %d bytes", common.ErrInvalidInput, name, maxBytes)
	}
	if buf.Len() == 0 {
		return Submission{}, fmt.Errorf("%w: %s is empty", common.ErrInvalidInput, name)
	}
	return NewSubmission(name, buf.Bytes()), nil
}

// FromFile reads path from disk. The submission is named by its base name.
func FromFile(path string, maxBytes int64) (Submission, error) {
	f, err := os.Open(path)
	if err != nil {
		return Submission{}, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			slog.Warn("ingest.file.close_error", "path", path, "error", err)
		}
	}(f)
	return FromReader(filepath.Base(path), f, maxBytes)
}

// Directory walks root in lexical order, skips hidden entries if requested,
// and reads every file with an accepted image extension.
// Per-file failures are collected in the results; only a bad root fails the call.
func Directory(root string, skipHidden bool, maxBytes int64) ([]Submission, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, fmt.Errorf("%w: root path is required", common.ErrInvalidInput)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, DirStats{}, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, DirStats{}, fmt.Errorf("%w: %s is not a directory", common.ErrInvalidInput, root)
	}

	var (
		subs    []Submission
		results []FileResult
		stats   DirStats
		seen    = map[uint64]struct{}{}
	)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		sub, err := FromFile(path, maxBytes)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if _, dup := seen[sub.Digest]; dup {
			stats.Duplicates++
		}
		seen[sub.Digest] = struct{}{}

		subs = append(subs, sub)
		results = append(results, FileResult{Path: path})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return subs, results, stats, fmt.Errorf("walk: %w", err)
	}
	return subs, results, stats, nil
}
