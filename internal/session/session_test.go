// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyugaDev/batch-query-chatbot/internal/api"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type spyEndpoint struct {
	mu       sync.Mutex
	calls    []api.AnalyzeRequest
	response string
	err      error

	// release, when set, blocks Analyze until closed.
	release chan struct{}
	started chan struct{}
}

func (e *spyEndpoint) Analyze(ctx context.Context, req api.AnalyzeRequest) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	e.mu.Unlock()

	if e.started != nil {
		close(e.started)
	}
	if e.release != nil {
		<-e.release
	}
	return e.response, e.err
}

func (e *spyEndpoint) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func newTestSession(t *testing.T, ep Endpoint, images int) (*Session, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	in := intake.New(nil)

	var batch []intake.Candidate
	for i := 0; i < images; i++ {
		batch = append(batch, intake.CandidateFromBytes(
			string(rune('a'+i))+".png", "image/png", []byte("\x89PNG\r\n\x1a\n")))
	}
	if len(batch) > 0 {
		_, err := in.Submit(context.Background(), batch)
		require.NoError(t, err)
	}

	return New(in, ep).WithNotifier(rec), rec
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"empty", "", ErrEmptyQuery},
		{"whitespace", "   \t\n", ErrEmptyQuery},
		{"two chars", "hi", ErrQueryTooShort},
		{"two chars padded", "  hi  ", ErrQueryTooShort},
		{"three chars", "why", nil},
		{"max length", strings.Repeat("a", MaxQueryLength), nil},
		{"over max", strings.Repeat("a", MaxQueryLength+1), ErrQueryTooLong},
		{"multibyte at max", strings.Repeat("é", MaxQueryLength), nil},
		{"combining sequence normalised", strings.Repeat("e\u0301", MaxQueryLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestValidateImages(t *testing.T) {
	img := func(name string, size int64) intake.UploadedImage {
		return intake.UploadedImage{Name: name, Size: size}
	}

	assert.ErrorIs(t, ValidateImages(nil), ErrNoImages)

	five := []intake.UploadedImage{img("1", 1), img("2", 1), img("3", 1), img("4", 1), img("5", 1)}
	assert.ErrorIs(t, ValidateImages(five), ErrTooManyImages)

	err := ValidateImages([]intake.UploadedImage{
		img("small.png", 10),
		img("big.png", intake.MaxImageSize+1),
		img("bigger.png", intake.MaxImageSize*2),
	})
	require.ErrorIs(t, err, ErrOversizedImages)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"big.png", "bigger.png"}, ve.Offenders)
	assert.Contains(t, err.Error(), "big.png, bigger.png")

	assert.NoError(t, ValidateImages([]intake.UploadedImage{img("ok.png", intake.MaxImageSize)}))
}

func TestValidate_QueryCheckedFirst(t *testing.T) {
	assert.ErrorIs(t, Validate("", nil), ErrEmptyQuery)
	assert.ErrorIs(t, Validate("what is this", nil), ErrNoImages)
}

// =============================================================================
// SEND
// =============================================================================

func TestSend_Success(t *testing.T) {
	ep := &spyEndpoint{response: "Image 1: a red apple"}
	s, rec := newTestSession(t, ep, 2)
	s.SetDraft("what fruit?")

	msg, err := s.Send(context.Background(), "  what fruit?  ")
	require.NoError(t, err)
	assert.Equal(t, KindBot, msg.Kind)
	assert.Equal(t, "Image 1: a red apple", msg.Content)
	assert.True(t, msg.Actionable())

	require.Equal(t, 1, ep.callCount())
	req := ep.calls[0]
	assert.Equal(t, "what fruit?", req.Query)
	require.Len(t, req.Images, 2)
	assert.Equal(t, "a.png", req.Images[0].Name)
	assert.Equal(t, "b.png", req.Images[1].Name)
	assert.True(t, strings.HasPrefix(req.Images[0].URL, "data:image/png;base64,"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, KindUser, msgs[0].Kind)
	assert.Len(t, msgs[0].Images, 2)
	assert.Equal(t, KindBot, msgs[1].Kind)

	assert.False(t, s.Pending())
	assert.Empty(t, s.Draft())
	assert.NoError(t, s.InlineError())

	last, _ := rec.Last()
	assert.Equal(t, notify.KindSuccess, last.Kind)
}

func TestSend_ValidationFailureMakesNoCall(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		images int
		want   error
	}{
		{"empty query", "", 1, ErrEmptyQuery},
		{"short query", "ab", 1, ErrQueryTooShort},
		{"long query", strings.Repeat("x", 501), 1, ErrQueryTooLong},
		{"no images", "describe these", 0, ErrNoImages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := &spyEndpoint{response: "unused"}
			s, _ := newTestSession(t, ep, tt.images)
			s.SetDraft(tt.query)

			_, err := s.Send(context.Background(), tt.query)
			require.ErrorIs(t, err, tt.want)

			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
			assert.ErrorIs(t, s.InlineError(), tt.want)
			assert.Equal(t, 0, ep.callCount())
			assert.Empty(t, s.Messages())
			assert.False(t, s.Pending())
			assert.Equal(t, tt.query, s.Draft(), "draft kept on validation failure")
		})
	}
}

func TestSend_InlineErrorClearedOnNextValidSend(t *testing.T) {
	ep := &spyEndpoint{response: "ok"}
	s, _ := newTestSession(t, ep, 1)

	_, err := s.Send(context.Background(), "")
	require.Error(t, err)
	require.Error(t, s.InlineError())

	_, err = s.Send(context.Background(), "what is this?")
	require.NoError(t, err)
	assert.NoError(t, s.InlineError())
}

func TestSend_EndpointFailure(t *testing.T) {
	ep := &spyEndpoint{err: &api.StatusError{Status: 500, Message: "Failed to analyze images"}}
	s, rec := newTestSession(t, ep, 1)
	s.SetDraft("what is this?")

	msg, err := s.Send(context.Background(), "what is this?")
	require.Error(t, err)
	var se *api.StatusError
	assert.ErrorAs(t, err, &se)

	assert.Equal(t, KindError, msg.Kind)
	assert.False(t, msg.Actionable())
	assert.Contains(t, msg.Content, "Failed to analyze images")

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, KindUser, msgs[0].Kind)
	assert.Equal(t, KindError, msgs[1].Kind)

	assert.False(t, s.Pending())
	assert.Equal(t, "what is this?", s.Draft(), "draft kept on failure")

	last, _ := rec.Last()
	assert.Equal(t, notify.KindError, last.Kind)
}

func TestSend_BusyWhileInFlight(t *testing.T) {
	ep := &spyEndpoint{
		response: "done",
		release:  make(chan struct{}),
		started:  make(chan struct{}),
	}
	s, _ := newTestSession(t, ep, 1)

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first question")
		done <- err
	}()

	<-ep.started
	assert.True(t, s.Pending())

	msgs := s.Messages()
	require.Len(t, msgs, 1, "user entry is visible while pending")
	assert.Equal(t, KindUser, msgs[0].Kind)

	_, err := s.Send(context.Background(), "second question")
	assert.ErrorIs(t, err, ErrBusy)

	close(ep.release)
	require.NoError(t, <-done)

	assert.False(t, s.Pending())
	assert.Equal(t, 1, ep.callCount())
	assert.Len(t, s.Messages(), 2)
}

func TestSend_ImagesSnapshotByValue(t *testing.T) {
	ep := &spyEndpoint{response: "ok"}
	s, _ := newTestSession(t, ep, 2)

	_, err := s.Send(context.Background(), "compare these")
	require.NoError(t, err)

	s.Intake().Clear()
	assert.Len(t, s.Messages()[0].Images, 2)
	assert.Len(t, s.Messages(), 2, "clearing images leaves the transcript alone")
}

func TestMessages_CopiesImages(t *testing.T) {
	ep := &spyEndpoint{response: "ok"}
	s, _ := newTestSession(t, ep, 2)

	_, err := s.Send(context.Background(), "compare these")
	require.NoError(t, err)

	msgs := s.Messages()
	original := msgs[0].Images[0].Name
	msgs[0].Images[0].Name = "changed"

	assert.Equal(t, original, s.Messages()[0].Images[0].Name, "transcript entry changed through a returned copy")
}

// =============================================================================
// ACTIONS
// =============================================================================

func TestCopy(t *testing.T) {
	ep := &spyEndpoint{response: "the answer"}
	s, rec := newTestSession(t, ep, 1)
	cb := &fakeClipboard{}
	s.WithClipboard(cb)

	msg, err := s.Send(context.Background(), "question?")
	require.NoError(t, err)

	require.NoError(t, s.Copy(msg.ID))
	assert.Equal(t, "the answer", cb.text)
	last, _ := rec.Last()
	assert.Equal(t, notify.KindSuccess, last.Kind)
}

func TestCopy_Failure(t *testing.T) {
	ep := &spyEndpoint{response: "the answer"}
	s, rec := newTestSession(t, ep, 1)
	s.WithClipboard(&fakeClipboard{err: errors.New("no clipboard utility")})

	msg, err := s.Send(context.Background(), "question?")
	require.NoError(t, err)
	before := len(s.Messages())

	err = s.Copy(msg.ID)
	assert.ErrorIs(t, err, ErrClipboard)
	assert.Len(t, s.Messages(), before, "copy failure is not a transcript entry")

	last, _ := rec.Last()
	assert.Equal(t, notify.KindError, last.Kind)
}

func TestCopy_RejectsNonBotEntries(t *testing.T) {
	ep := &spyEndpoint{err: errors.New("boom")}
	s, _ := newTestSession(t, ep, 1)
	s.WithClipboard(&fakeClipboard{})

	errEntry, _ := s.Send(context.Background(), "question?")
	user := s.Messages()[0]

	assert.ErrorIs(t, s.Copy(errEntry.ID), ErrNotActionable)
	assert.ErrorIs(t, s.Copy(user.ID), ErrNotActionable)
	assert.ErrorIs(t, s.Copy("missing"), ErrMessageNotFound)
	assert.ErrorIs(t, s.CopyLast(), ErrMessageNotFound)
}

func TestFeedback(t *testing.T) {
	ep := &spyEndpoint{response: "answer"}
	s, _ := newTestSession(t, ep, 1)

	msg, err := s.Send(context.Background(), "question?")
	require.NoError(t, err)

	require.NoError(t, s.Feedback(msg.ID, true))
	positive, ok := s.FeedbackFor(msg.ID)
	assert.True(t, ok)
	assert.True(t, positive)

	require.NoError(t, s.Feedback(msg.ID, false))
	positive, _ = s.FeedbackFor(msg.ID)
	assert.False(t, positive)

	assert.ErrorIs(t, s.Feedback(s.Messages()[0].ID, true), ErrNotActionable)
}
