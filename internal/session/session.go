// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session is the chat state machine: it validates a query against
// the attached images, sends one analysis request at a time, and keeps the
// transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/HyugaDev/batch-query-chatbot/internal/api"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
)

// Session errors that are not validation failures.
var (
	// ErrBusy means a query is already in flight.
	ErrBusy = errors.New("a request is already in progress")

	// ErrMessageNotFound means no transcript entry has the given id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotActionable means the entry does not offer copy or feedback.
	ErrNotActionable = errors.New("only responses can be copied or rated")

	// ErrClipboard wraps clipboard write failures.
	ErrClipboard = errors.New("failed to copy to clipboard")
)

// Endpoint is the analysis service as seen by the session.
type Endpoint interface {
	Analyze(ctx context.Context, req api.AnalyzeRequest) (string, error)
}

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Session holds the transcript, the draft query and the in-flight flag for
// one chat. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	intake    *intake.Intake
	endpoint  Endpoint
	notifier  notify.Notifier
	clipboard Clipboard

	messages  []Message
	pending   bool
	draft     string
	inlineErr error
	feedback  map[string]bool
}

// New creates a session that draws images from in and sends queries to ep.
func New(in *intake.Intake, ep Endpoint) *Session {
	return &Session{
		intake:    in,
		endpoint:  ep,
		notifier:  notify.Discard,
		clipboard: systemClipboard{},
		feedback:  make(map[string]bool),
	}
}

// WithNotifier sets the notification sink.
func (s *Session) WithNotifier(n notify.Notifier) *Session {
	s.notifier = notify.OrDiscard(n)
	return s
}

// WithClipboard replaces the system clipboard.
func (s *Session) WithClipboard(c Clipboard) *Session {
	if c != nil {
		s.clipboard = c
	}
	return s
}

// Intake returns the session's image set.
func (s *Session) Intake() *intake.Intake {
	return s.intake
}

// =============================================================================
// SEND
// =============================================================================

// Send validates query against the current images and, if valid, performs
// one analysis call. The returned Message is the bot or error entry that
// was appended. Validation failures return a *ValidationError and leave the
// transcript untouched.
func (s *Session) Send(ctx context.Context, query string) (Message, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return Message{}, ErrBusy
	}

	images := s.intake.Images()
	if err := Validate(query, images); err != nil {
		s.inlineErr = err
		s.mu.Unlock()
		return Message{}, err
	}
	s.inlineErr = nil

	text := strings.TrimSpace(query)
	s.messages = append(s.messages, newMessage(KindUser, text, images))
	s.pending = true
	s.mu.Unlock()

	req := api.AnalyzeRequest{Query: text, Images: make([]api.ImageRef, len(images))}
	for i, img := range images {
		req.Images[i] = api.ImageRef{URL: img.DataURL, Name: img.Name}
	}

	log.Printf("QUERY_SEND | images=%d query_len=%d", len(images), QueryLength(text))
	response, err := s.endpoint.Analyze(ctx, req)

	s.mu.Lock()
	s.pending = false
	if err != nil {
		entry := newMessage(KindError, fmt.Sprintf("Failed to analyze images: %v", err), nil)
		s.messages = append(s.messages, entry)
		s.mu.Unlock()

		log.Printf("QUERY_FAILED | error=%v", err)
		s.notifier.Notify(notify.New(notify.KindError, "Analysis failed", err.Error()))
		return entry, err
	}

	entry := newMessage(KindBot, response, nil)
	s.messages = append(s.messages, entry)
	s.draft = ""
	s.mu.Unlock()

	s.notifier.Notify(notify.New(notify.KindSuccess, "Analysis complete",
		fmt.Sprintf("Analyzed %d image(s)", len(images))))
	return entry, nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// Copy puts the content of a bot entry on the clipboard. Failures are
// notified and returned. They never become transcript entries.
func (s *Session) Copy(id string) error {
	msg, err := s.actionable(id)
	if err != nil {
		s.notifier.Notify(notify.New(notify.KindError, "Copy failed", err.Error()))
		return err
	}

	if err := s.clipboard.WriteAll(msg.Content); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrClipboard, err)
		s.notifier.Notify(notify.New(notify.KindError, "Copy failed", wrapped.Error()))
		return wrapped
	}

	s.notifier.Notify(notify.New(notify.KindSuccess, "Copied", "Response copied to clipboard"))
	return nil
}

// CopyLast copies the most recent bot entry.
func (s *Session) CopyLast() error {
	msg, ok := s.LastResponse()
	if !ok {
		err := fmt.Errorf("%w: no response yet", ErrMessageNotFound)
		s.notifier.Notify(notify.New(notify.KindError, "Copy failed", err.Error()))
		return err
	}
	return s.Copy(msg.ID)
}

// Feedback records a thumbs up or down on a bot entry.
func (s *Session) Feedback(id string, positive bool) error {
	if _, err := s.actionable(id); err != nil {
		s.notifier.Notify(notify.New(notify.KindError, "Feedback failed", err.Error()))
		return err
	}

	s.mu.Lock()
	s.feedback[id] = positive
	s.mu.Unlock()

	log.Printf("FEEDBACK | message=%s positive=%t", id, positive)
	s.notifier.Notify(notify.New(notify.KindInfo, "Feedback", "Thanks for your feedback"))
	return nil
}

// FeedbackFor returns the recorded rating for a message, if any.
func (s *Session) FeedbackFor(id string) (positive bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	positive, ok = s.feedback[id]
	return positive, ok
}

func (s *Session) actionable(id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID != id {
			continue
		}
		if !m.Actionable() {
			return Message{}, ErrNotActionable
		}
		return m, nil
	}
	return Message{}, ErrMessageNotFound
}

// =============================================================================
// STATE
// =============================================================================

// Messages returns a copy of the transcript in insertion order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

// LastResponse returns the most recent bot entry.
func (s *Session) LastResponse() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Kind == KindBot {
			return s.messages[i].clone(), true
		}
	}
	return Message{}, false
}

// Pending reports whether a query is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// InlineError returns the last validation failure, or nil.
func (s *Session) InlineError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inlineErr
}

// ClearInlineError dismisses the inline validation message.
func (s *Session) ClearInlineError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inlineErr = nil
}

// Draft returns the unsent query text.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the unsent query text.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}
