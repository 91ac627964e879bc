// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/unicode/norm"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
)

// Query length bounds, in characters.
const (
	MinQueryLength = 3
	MaxQueryLength = 500
)

// Validation sentinels. Each is wrapped in a *ValidationError.
var (
	ErrEmptyQuery      = errors.New("please enter a question")
	ErrQueryTooShort   = errors.New("query is too short")
	ErrQueryTooLong    = errors.New("query is too long")
	ErrNoImages        = errors.New("please upload at least one image")
	ErrTooManyImages   = errors.New("too many images")
	ErrOversizedImages = errors.New("some images are too large")
)

// ValidationError is a rejected submission. It is shown inline and never
// reaches the network.
type ValidationError struct {
	Err    error
	Detail string

	// Offenders lists image names for ErrOversizedImages.
	Offenders []string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// QueryLength counts characters the way the limits are defined: Unicode
// code points after NFC normalisation.
func QueryLength(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// ValidateQuery checks the query text. The lower bound applies to the
// trimmed query and the upper bound to the text as typed.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &ValidationError{Err: ErrEmptyQuery}
	}
	if n := QueryLength(trimmed); n < MinQueryLength {
		return &ValidationError{
			Err:    ErrQueryTooShort,
			Detail: fmt.Sprintf("at least %d characters required", MinQueryLength),
		}
	}
	if n := QueryLength(query); n > MaxQueryLength {
		return &ValidationError{
			Err:    ErrQueryTooLong,
			Detail: fmt.Sprintf("%d characters, maximum is %d", n, MaxQueryLength),
		}
	}
	return nil
}

// ValidateImages checks the image snapshot that would accompany a query.
func ValidateImages(images []intake.UploadedImage) error {
	if len(images) == 0 {
		return &ValidationError{Err: ErrNoImages}
	}
	if len(images) > intake.MaxImages {
		return &ValidationError{
			Err:    ErrTooManyImages,
			Detail: fmt.Sprintf("maximum %d images allowed", intake.MaxImages),
		}
	}

	var offenders []string
	for _, img := range images {
		if img.Size > intake.MaxImageSize {
			offenders = append(offenders, img.Name)
		}
	}
	if len(offenders) > 0 {
		return &ValidationError{
			Err: ErrOversizedImages,
			Detail: fmt.Sprintf("%s exceed the %s limit",
				strings.Join(offenders, ", "), humanize.IBytes(uint64(intake.MaxImageSize))),
			Offenders: offenders,
		}
	}
	return nil
}

// Validate runs query validation, then image validation, and returns the
// first failure.
func Validate(query string, images []intake.UploadedImage) error {
	if err := ValidateQuery(query); err != nil {
		return err
	}
	return ValidateImages(images)
}
