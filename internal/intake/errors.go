// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intake

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Sentinel errors for rejected files and batches.
var (
	// ErrCapacityExceeded means the batch would push the active set past MaxImages.
	ErrCapacityExceeded = errors.New("image limit exceeded")

	// ErrNotImage means the file's MIME type is outside the image/ category.
	ErrNotImage = errors.New("file is not an image")

	// ErrUnsupportedType means the image type is not in the allow-list.
	ErrUnsupportedType = errors.New("unsupported image type")

	// ErrTooLarge means the file is larger than MaxImageSize.
	ErrTooLarge = errors.New("image is too large")

	// ErrReadFailed means the file could not be read or encoded.
	ErrReadFailed = errors.New("failed to read file")
)

// FileError ties a rejection reason to the file that caused it.
type FileError struct {
	Name string
	Err  error

	// Detail is appended to the message when set (e.g. the offending type or size).
	Detail string
}

func (e *FileError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Name, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// CapacityError reports a batch that does not fit in the remaining slots.
type CapacityError struct {
	Requested int
	Remaining int
	Max       int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("maximum %d images allowed: tried to add %d, room for %d more",
		e.Max, e.Requested, e.Remaining)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// BatchError is returned when a whole batch is rejected. Every reason is
// kept, but Error() surfaces only the first one.
type BatchError struct {
	Reasons []error
}

func (e *BatchError) Error() string {
	if len(e.Reasons) == 0 {
		return "batch rejected"
	}
	return e.Reasons[0].Error()
}

// Unwrap exposes every reason to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Reasons
}

// First returns the first rejection reason, or nil.
func (e *BatchError) First() error {
	if len(e.Reasons) == 0 {
		return nil
	}
	return e.Reasons[0]
}

func tooLarge(name string, size int64, limit int64) error {
	return &FileError{
		Name:   name,
		Err:    ErrTooLarge,
		Detail: fmt.Sprintf("%s, limit %s", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit))),
	}
}
