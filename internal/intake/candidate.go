// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intake

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// sniffLen is how many leading bytes content sniffing looks at.
const sniffLen = 512

// Candidate is a file offered to Submit. It has not been validated yet.
type Candidate struct {
	// Name is the display name (usually the base file name).
	Name string

	// MIMEType is the declared or sniffed media type, without parameters.
	MIMEType string

	// Size is the byte size reported by the source.
	Size int64

	// Source identifies the original file (a path for local files).
	Source string

	// Open returns a reader over the file contents.
	Open func() (io.ReadCloser, error)
}

// CandidateFromBytes wraps in-memory data as a candidate.
func CandidateFromBytes(name, mimeType string, data []byte) Candidate {
	return Candidate{
		Name:     name,
		MIMEType: normalizeMIME(mimeType),
		Size:     int64(len(data)),
		Source:   name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// CandidateFromPath builds a candidate for a local file. The MIME type is
// sniffed from the first bytes and falls back to the file extension.
func CandidateFromPath(path string) (Candidate, error) {
	path = expandHome(path)

	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, &FileError{Name: filepath.Base(path), Err: ErrReadFailed, Detail: err.Error()}
	}
	if info.IsDir() {
		return Candidate{}, &FileError{Name: filepath.Base(path), Err: ErrNotImage, Detail: "is a directory"}
	}

	mimeType, err := DetectMIME(path)
	if err != nil {
		return Candidate{}, &FileError{Name: filepath.Base(path), Err: ErrReadFailed, Detail: err.Error()}
	}

	return Candidate{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     info.Size(),
		Source:   path,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// DetectMIME sniffs the media type of the file at path.
func DetectMIME(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read file header: %w", err)
	}

	sniffed := normalizeMIME(http.DetectContentType(head[:n]))
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}

	// Sniffing misses some valid images (short files, unusual headers).
	if byExt := normalizeMIME(mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))); byExt != "" {
		if strings.HasPrefix(byExt, "image/") && sniffed == "application/octet-stream" {
			return byExt, nil
		}
	}
	return sniffed, nil
}

// normalizeMIME strips parameters and lowercases the media type.
func normalizeMIME(t string) string {
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(t))
	}
	return mediaType
}

// expandHome resolves a leading ~ to the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ParsePaths splits user input into file paths. Terminals paste dragged
// files either quoted or with backslash-escaped spaces; both are handled.
func ParsePaths(input string) []string {
	var (
		paths   []string
		current strings.Builder
		quote   rune
		escaped bool
	)

	flush := func() {
		if current.Len() > 0 {
			paths = append(paths, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.TrimSpace(input) {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	for i, p := range paths {
		paths[i] = fileURLPath(p)
	}
	return paths
}

// fileURLPath turns a file:// URL into a local path, decoding escapes such
// as %20. Anything else is returned unchanged.
func fileURLPath(p string) string {
	if !strings.HasPrefix(p, "file://") {
		return p
	}
	u, err := url.Parse(p)
	if err != nil || u.Path == "" {
		return strings.TrimPrefix(p, "file://")
	}
	return u.Path
}

// DroppedPaths parses input with ParsePaths and reports whether every path
// names an existing regular file. A sentence that happens to contain a
// path is not a drop.
func DroppedPaths(input string) ([]string, bool) {
	paths := ParsePaths(input)
	if len(paths) == 0 {
		return nil, false
	}
	for _, p := range paths {
		info, err := os.Stat(expandHome(p))
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
	}
	return paths, true
}
