// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package selection describes a user-chosen file: its declared metadata and
// a way to read its bytes.
package selection

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoContent is returned by Open when the file was built without a content source.
var ErrNoContent = errors.New("selected file has no content source")

// File is an opaque handle to user-chosen binary content.
type File struct {
	Name      string
	SizeBytes int64
	MimeType  string

	open func() (io.ReadCloser, error)
}

// New builds a File from explicit metadata and an opener for its bytes.
func New(name, mimeType string, size int64, open func() (io.ReadCloser, error)) File {
	return File{Name: name, SizeBytes: size, MimeType: mimeType, open: open}
}

// FromBytes builds an in-memory File.
func FromBytes(name, mimeType string, data []byte) File {
	return New(name, mimeType, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromPath builds a File for a file on disk. The MIME type comes from the
// extension, falling back to content sniffing of the first 512 bytes.
func FromPath(path string) (File, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := detectMimeType(path)
	if err != nil {
		return File{}, err
	}

	return New(filepath.Base(path), mimeType, info.Size(), func() (io.ReadCloser, error) {
		// #nosec G304 -- paths are chosen by the operator
		return os.Open(path)
	}), nil
}

// Open returns a fresh reader over the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, ErrNoContent
	}
	return f.open()
}

// IsZero reports whether no file is set.
func (f File) IsZero() bool {
	return f.Name == "" && f.SizeBytes == 0 && f.MimeType == "" && f.open == nil
}

// videoTypes covers the container extensions users typically pick; the system
// MIME table is not guaranteed to know them.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
}

func detectMimeType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if known, ok := videoTypes[ext]; ok {
		return known, nil
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType, nil
		}
		return byExt, nil
	}

	// #nosec G304 -- paths are chosen by the operator
	fh, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = fh.Close() }()

	head := make([]byte, 512)
	n, err := io.ReadFull(fh, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sniffed := http.DetectContentType(head[:n])
	if mediaType, _, err := mime.ParseMediaType(sniffed); err == nil {
		return mediaType, nil
	}
	return sniffed, nil
}

// FormatSize renders a byte count the way the selection panel shows it.
func FormatSize(bytes int64) string {
	const mib = 1024 * 1024
	if bytes < mib {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/mib)
}
