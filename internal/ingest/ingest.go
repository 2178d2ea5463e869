// Package ingest turns uploads and files on disk into Submissions and prepares them for recognition.
package ingest

import (
	"strconv"
)

// Submission is one register page as received, before any decoding.
type Submission struct {
	Name   string // file name shown to users and stamped into SourceFile
	Data   []byte
	Digest uint64 // xxhash of Data
}

// DigestHex renders the digest for logs.
func (s Submission) DigestHex() string {
	return strconv.FormatUint(s.Digest, 16)
}

// FileResult is the per-file outcome of a directory scan.
type FileResult struct {
	Path string
	Err  string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Succeeded  uint32
	Duplicates uint32 // same bytes seen earlier in the scan; still returned
	Failed     uint32
}
