// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package intake validates, encodes and holds the images attached to a chat
// session. A batch is accepted whole or not at all.
package intake

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
)

// =============================================================================
// LIMITS
// =============================================================================

const (
	// MaxImages is the most images a session may hold at once.
	MaxImages = 4

	// MaxImageSize is the largest accepted file, in bytes.
	MaxImageSize int64 = 10 * 1024 * 1024
)

// AllowedTypes is the MIME allow-list, in display order.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// IsAllowedType reports whether mimeType is in AllowedTypes.
func IsAllowedType(mimeType string) bool {
	for _, t := range AllowedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// =============================================================================
// TYPES
// =============================================================================

// UploadedImage is an accepted, encoded image.
type UploadedImage struct {
	ID       string
	Name     string
	MIMEType string
	Size     int64
	DataURL  string
	Source   string
}

// Intake holds the active image set for one session. It is safe for
// concurrent use.
type Intake struct {
	mu       sync.Mutex
	images   []UploadedImage
	notifier notify.Notifier
}

// New creates an empty Intake. A nil notifier discards notifications.
func New(n notify.Notifier) *Intake {
	return &Intake{notifier: notify.OrDiscard(n)}
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and encodes a batch of candidates. Either every
// candidate is added or none is.
func (in *Intake) Submit(ctx context.Context, candidates []Candidate) ([]UploadedImage, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	remaining := MaxImages - in.Count()
	if len(candidates) > remaining {
		return nil, in.reject([]error{&CapacityError{
			Requested: len(candidates),
			Remaining: remaining,
			Max:       MaxImages,
		}})
	}

	var reasons []error
	for _, c := range candidates {
		if err := Validate(c); err != nil {
			reasons = append(reasons, err)
		}
	}
	if len(reasons) > 0 {
		return nil, in.reject(reasons)
	}

	encoded, err := encodeAll(ctx, candidates)
	if err != nil {
		return nil, in.reject([]error{err})
	}

	in.mu.Lock()
	// Another batch may have landed while this one was encoding.
	if len(in.images)+len(encoded) > MaxImages {
		remaining = MaxImages - len(in.images)
		in.mu.Unlock()
		return nil, in.reject([]error{&CapacityError{
			Requested: len(encoded),
			Remaining: remaining,
			Max:       MaxImages,
		}})
	}
	in.images = append(in.images, encoded...)
	in.mu.Unlock()

	in.notifier.Notify(notify.New(notify.KindSuccess, "Images added",
		fmt.Sprintf("%d image(s) added", len(encoded))))

	out := make([]UploadedImage, len(encoded))
	copy(out, encoded)
	return out, nil
}

// SubmitPaths builds candidates from local files and submits them as one
// batch. An unreadable path rejects the whole batch.
func (in *Intake) SubmitPaths(ctx context.Context, paths []string) ([]UploadedImage, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if remaining := in.Remaining(); len(paths) > remaining {
		return nil, in.reject([]error{&CapacityError{
			Requested: len(paths),
			Remaining: remaining,
			Max:       MaxImages,
		}})
	}

	candidates := make([]Candidate, 0, len(paths))
	var reasons []error
	for _, p := range paths {
		c, err := CandidateFromPath(p)
		if err != nil {
			reasons = append(reasons, err)
			continue
		}
		candidates = append(candidates, c)
	}
	if len(reasons) > 0 {
		return nil, in.reject(reasons)
	}
	return in.Submit(ctx, candidates)
}

// Validate checks a single candidate's type and size.
func Validate(c Candidate) error {
	mimeType := normalizeMIME(c.MIMEType)
	if !strings.HasPrefix(mimeType, "image/") {
		detail := mimeType
		if detail == "" {
			detail = "unknown type"
		}
		return &FileError{Name: c.Name, Err: ErrNotImage, Detail: detail}
	}
	if !IsAllowedType(mimeType) {
		return &FileError{Name: c.Name, Err: ErrUnsupportedType, Detail: mimeType}
	}
	if c.Size > MaxImageSize {
		return tooLarge(c.Name, c.Size, MaxImageSize)
	}
	return nil
}

func (in *Intake) reject(reasons []error) error {
	err := &BatchError{Reasons: reasons}
	in.notifier.Notify(notify.New(notify.KindError, "Upload rejected",
		fmt.Sprintf("%d file(s) rejected: %v", rejectedCount(reasons), err.First())))
	return err
}

// rejectedCount counts files, not reasons. A capacity failure rejects the
// whole requested batch.
func rejectedCount(reasons []error) int {
	if len(reasons) == 1 {
		if ce, ok := reasons[0].(*CapacityError); ok {
			return ce.Requested
		}
	}
	return len(reasons)
}

// =============================================================================
// ENCODING
// =============================================================================

func encodeAll(ctx context.Context, candidates []Candidate) ([]UploadedImage, error) {
	out := make([]UploadedImage, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		g.Go(func() error {
			img, err := encode(gctx, c)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func encode(ctx context.Context, c Candidate) (UploadedImage, error) {
	if err := ctx.Err(); err != nil {
		return UploadedImage{}, &FileError{Name: c.Name, Err: ErrReadFailed, Detail: err.Error()}
	}
	if c.Open == nil {
		return UploadedImage{}, &FileError{Name: c.Name, Err: ErrReadFailed, Detail: "no content"}
	}

	rc, err := c.Open()
	if err != nil {
		return UploadedImage{}, &FileError{Name: c.Name, Err: ErrReadFailed, Detail: err.Error()}
	}
	defer rc.Close()

	// The reported size can be stale; never read more than the limit allows.
	data, err := io.ReadAll(io.LimitReader(rc, MaxImageSize+1))
	if err != nil {
		return UploadedImage{}, &FileError{Name: c.Name, Err: ErrReadFailed, Detail: err.Error()}
	}
	if int64(len(data)) > MaxImageSize {
		return UploadedImage{}, tooLarge(c.Name, int64(len(data)), MaxImageSize)
	}

	mimeType := normalizeMIME(c.MIMEType)
	return UploadedImage{
		ID:       uuid.NewString(),
		Name:     c.Name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		DataURL:  EncodeDataURL(mimeType, data),
		Source:   c.Source,
	}, nil
}

// EncodeDataURL builds a self-contained data URL for the given bytes.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// =============================================================================
// ACCESSORS AND MUTATORS
// =============================================================================

// Remove drops the image with the given id. It reports whether one was found.
func (in *Intake) Remove(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i, img := range in.images {
		if img.ID == id {
			in.images = append(in.images[:i:i], in.images[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAt drops the image at a zero-based position.
func (in *Intake) RemoveAt(index int) (UploadedImage, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if index < 0 || index >= len(in.images) {
		return UploadedImage{}, false
	}
	img := in.images[index]
	in.images = append(in.images[:index:index], in.images[index+1:]...)
	return img, true
}

// Clear empties the active set.
func (in *Intake) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.images = nil
}

// Images returns a copy of the active set in insertion order.
func (in *Intake) Images() []UploadedImage {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]UploadedImage, len(in.images))
	copy(out, in.images)
	return out
}

// Count returns the number of active images.
func (in *Intake) Count() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.images)
}

// Remaining returns how many more images may be added.
func (in *Intake) Remaining() int {
	return MaxImages - in.Count()
}

// TotalSize returns the combined byte size of the active set.
func (in *Intake) TotalSize() int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	var total int64
	for _, img := range in.images {
		total += img.Size
	}
	return total
}
