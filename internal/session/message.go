// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
)

// Kind identifies who produced a transcript entry.
type Kind int

const (
	KindUser Kind = iota
	KindBot
	KindError
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindBot:
		return "bot"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one transcript entry. Entries are never modified once appended.
type Message struct {
	ID      string
	Kind    Kind
	Content string

	// Images is the snapshot sent with a user entry. Nil for other kinds.
	Images []intake.UploadedImage

	CreatedAt time.Time
}

// Actionable reports whether the entry offers copy and feedback actions.
// Only bot answers do.
func (m Message) Actionable() bool {
	return m.Kind == KindBot
}

// clone returns m with its own copy of Images.
func (m Message) clone() Message {
	if m.Images != nil {
		m.Images = append([]intake.UploadedImage(nil), m.Images...)
	}
	return m
}

func newMessage(kind Kind, content string, images []intake.UploadedImage) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		Images:    images,
		CreatedAt: time.Now(),
	}
}
