// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HyugaDev/batch-query-chatbot/internal/api"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/components"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
	"github.com/HyugaDev/batch-query-chatbot/internal/watch"
)

// =============================================================================
// HELPERS
// =============================================================================

type stubEndpoint struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (e *stubEndpoint) Analyze(_ context.Context, _ api.AnalyzeRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.reply, e.err
}

type fakeClipboard struct{ text string }

func (c *fakeClipboard) WriteAll(text string) error {
	c.text = text
	return nil
}

type harness struct {
	m      Model
	sess   *session.Session
	toasts *components.ToastManager
	ep     *stubEndpoint
	clip   *fakeClipboard
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	toasts := components.NewToastManager()
	ep := &stubEndpoint{reply: "A **red** square."}
	clip := &fakeClipboard{}
	sess := session.New(intake.New(toasts), ep).WithNotifier(toasts).WithClipboard(clip)

	h := &harness{sess: sess, toasts: toasts, ep: ep, clip: clip}
	h.m = New(styles.NewTheme(), sess, toasts, Options{Endpoint: "test"})
	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

// send feeds msg to the model and runs the returned commands until they stop
// producing messages the model cares about.
func (h *harness) send(msg tea.Msg) {
	model, cmd := h.m.Update(msg)
	h.m = model.(Model)
	h.run(cmd)
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			h.run(c)
		}
	case SendDoneMsg, AttachDoneMsg:
		h.send(msg)
	}
}

func (h *harness) typeText(s string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) press(t tea.KeyType) {
	h.send(tea.KeyMsg{Type: t})
}

func (h *harness) attach(t *testing.T) {
	t.Helper()
	c := intake.CandidateFromBytes("square.png", "image/png", append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...))
	if _, err := h.sess.Intake().Submit(context.Background(), []intake.Candidate{c}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
}

func hasToast(toasts *components.ToastManager, title string) bool {
	for _, toast := range toasts.Toasts() {
		if toast.Title == title {
			return true
		}
	}
	return false
}

// =============================================================================
// COMPOSE
// =============================================================================

func TestSubmit_WithoutImagesShowsInlineError(t *testing.T) {
	h := newHarness(t)
	h.typeText("What is this?")
	h.press(tea.KeyEnter)

	if h.sess.InlineError() == nil {
		t.Fatal("expected an inline validation error")
	}
	if h.ep.calls != 0 {
		t.Errorf("endpoint called %d times", h.ep.calls)
	}
	if h.m.input.Value() != "What is this?" {
		t.Errorf("input = %q, want question kept", h.m.input.Value())
	}
	if h.m.Sending() {
		t.Error("model still sending after validation failure")
	}
	if !strings.Contains(h.m.View(), h.sess.InlineError().Error()) {
		t.Error("inline error not rendered")
	}

	// Typing clears it.
	h.typeText("!")
	if h.sess.InlineError() != nil {
		t.Error("inline error not cleared by editing")
	}
}

func TestSubmit_SuccessResetsInput(t *testing.T) {
	h := newHarness(t)
	h.attach(t)
	h.typeText("What shape is it?")
	h.press(tea.KeyEnter)

	if h.ep.calls != 1 {
		t.Fatalf("endpoint calls = %d, want 1", h.ep.calls)
	}
	if h.m.input.Value() != "" {
		t.Errorf("input = %q, want empty", h.m.input.Value())
	}
	if h.m.Sending() {
		t.Error("still sending after SendDoneMsg")
	}
	msgs := h.sess.Messages()
	if len(msgs) != 2 || msgs[1].Kind != session.KindBot {
		t.Fatalf("messages = %+v", msgs)
	}
	if !hasToast(h.toasts, "Analysis complete") {
		t.Error("missing success toast")
	}
	if h.m.status.Status != components.StatusReady {
		t.Errorf("status = %v", h.m.status.Status)
	}
}

func TestSubmit_FailureKeepsQuestion(t *testing.T) {
	h := newHarness(t)
	h.ep.err = &api.StatusError{Status: 502, Message: "upstream down"}
	h.attach(t)
	h.typeText("What shape is it?")
	h.press(tea.KeyEnter)

	if h.m.input.Value() != "What shape is it?" {
		t.Errorf("input = %q, want question kept", h.m.input.Value())
	}
	msgs := h.sess.Messages()
	if len(msgs) != 2 || msgs[1].Kind != session.KindError {
		t.Fatalf("messages = %+v", msgs)
	}
	if h.m.status.Status != components.StatusError {
		t.Errorf("status = %v, want error", h.m.status.Status)
	}
	if !hasToast(h.toasts, "Analysis failed") {
		t.Error("missing failure toast")
	}
}

func TestSubmit_PendingShowsSpinnerLine(t *testing.T) {
	h := newHarness(t)
	h.attach(t)
	h.typeText("What shape is it?")

	// Run Update without executing the send command.
	model, cmd := h.m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m := model.(Model)
	if cmd == nil || !m.Sending() {
		t.Fatal("expected a pending send")
	}
	if !strings.Contains(m.viewport.View(), "Analyzing 1 image(s)") {
		t.Error("pending indicator not rendered")
	}

	// A second Enter while pending does nothing.
	if _, again := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); again != nil {
		t.Error("second submit produced a command")
	}
}

func TestSubmit_DroppedPathsAttach(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "dropped.png")
	if err := os.WriteFile(path, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...), 0644); err != nil {
		t.Fatal(err)
	}

	h.typeText(path)
	h.press(tea.KeyEnter)

	if h.sess.Intake().Count() != 1 {
		t.Fatalf("images = %d, want 1", h.sess.Intake().Count())
	}
	if h.ep.calls != 0 {
		t.Error("dropped path was sent as a question")
	}
	if h.m.input.Value() != "" {
		t.Errorf("input = %q", h.m.input.Value())
	}
}

// =============================================================================
// ATTACH
// =============================================================================

func TestAttachMode(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")
	if err := os.WriteFile(good, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...), 0644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(bad, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	h.press(tea.KeyCtrlO)
	if h.m.Mode() != ModeAttach {
		t.Fatalf("mode = %v, want attach", h.m.Mode())
	}

	// A rejected batch keeps attach mode and shows the banner.
	h.typeText(bad)
	h.press(tea.KeyEnter)
	if h.m.Mode() != ModeAttach {
		t.Errorf("mode = %v after rejection", h.m.Mode())
	}
	if !errors.Is(h.m.uploadErr, intake.ErrNotImage) {
		t.Errorf("uploadErr = %v, want ErrNotImage", h.m.uploadErr)
	}
	if !hasToast(h.toasts, "Upload rejected") {
		t.Error("missing rejection toast")
	}

	h.press(tea.KeyEsc)
	if h.m.Mode() != ModeCompose || h.m.uploadErr != nil {
		t.Fatalf("esc: mode = %v uploadErr = %v", h.m.Mode(), h.m.uploadErr)
	}

	h.press(tea.KeyCtrlO)
	h.typeText(good)
	h.press(tea.KeyEnter)
	if h.m.Mode() != ModeCompose {
		t.Errorf("mode = %v after attach", h.m.Mode())
	}
	if h.sess.Intake().Count() != 1 {
		t.Errorf("images = %d", h.sess.Intake().Count())
	}
	if !strings.Contains(h.m.View(), "a.png") {
		t.Error("attachment chip not rendered")
	}
}

func TestRemoveAndClear(t *testing.T) {
	h := newHarness(t)
	h.attach(t)
	h.attach(t)

	h.press(tea.KeyCtrlX)
	if h.sess.Intake().Count() != 1 {
		t.Errorf("after remove: images = %d", h.sess.Intake().Count())
	}
	h.attach(t)
	h.press(tea.KeyCtrlL)
	if h.sess.Intake().Count() != 0 {
		t.Errorf("after clear: images = %d", h.sess.Intake().Count())
	}
	if h.m.status.Images != 0 {
		t.Errorf("status images = %d", h.m.status.Images)
	}
}

// =============================================================================
// BROWSE
// =============================================================================

func TestBrowse_CopyAndFeedback(t *testing.T) {
	h := newHarness(t)
	h.attach(t)
	h.typeText("What shape is it?")
	h.press(tea.KeyEnter)

	h.press(tea.KeyEsc)
	if h.m.Mode() != ModeBrowse {
		t.Fatalf("mode = %v, want browse", h.m.Mode())
	}
	if h.m.selected != 1 {
		t.Errorf("selected = %d, want newest answer", h.m.selected)
	}

	h.typeText("c")
	if h.clip.text != "A **red** square." {
		t.Errorf("clipboard = %q", h.clip.text)
	}

	h.typeText("+")
	bot := h.sess.Messages()[1]
	if positive, ok := h.sess.FeedbackFor(bot.ID); !ok || !positive {
		t.Errorf("feedback = %v %v, want positive", positive, ok)
	}
	h.typeText("-")
	if positive, _ := h.sess.FeedbackFor(bot.ID); positive {
		t.Error("feedback not changed to negative")
	}

	// The user entry is not actionable.
	h.press(tea.KeyUp)
	h.clip.text = ""
	h.typeText("c")
	if h.clip.text != "" {
		t.Errorf("copied user entry: %q", h.clip.text)
	}

	h.press(tea.KeyEsc)
	if h.m.Mode() != ModeCompose {
		t.Errorf("mode = %v after esc", h.m.Mode())
	}
}

func TestBrowse_HelpOverlay(t *testing.T) {
	h := newHarness(t)
	h.attach(t)
	h.typeText("What shape is it?")
	h.press(tea.KeyEnter)
	h.press(tea.KeyEsc)

	h.typeText("?")
	if !h.m.showHelp || !strings.Contains(h.m.View(), "Keys") {
		t.Fatal("help overlay not shown")
	}
	h.typeText("j")
	if h.m.showHelp {
		t.Error("any key should close help")
	}
}

func TestEscWithoutMessagesDismissesToast(t *testing.T) {
	h := newHarness(t)
	h.toasts.Notify(notify.New(notify.KindInfo, "Hello", "world"))
	if h.toasts.Len() != 1 {
		t.Fatalf("toasts = %d", h.toasts.Len())
	}
	h.press(tea.KeyEsc)
	if h.toasts.Len() != 0 {
		t.Errorf("toasts = %d after esc", h.toasts.Len())
	}
	if h.m.Mode() != ModeCompose {
		t.Errorf("mode = %v", h.m.Mode())
	}
}

// =============================================================================
// WATCH AND LAYOUT
// =============================================================================

func TestWatchEvent(t *testing.T) {
	h := newHarness(t)
	h.send(WatchEventMsg{Event: watch.Event{Path: "/drop/x.txt", Err: intake.ErrNotImage}})
	if !errors.Is(h.m.uploadErr, intake.ErrNotImage) {
		t.Errorf("uploadErr = %v", h.m.uploadErr)
	}
	h.send(WatchEventMsg{Event: watch.Event{Path: "/drop/y.png"}})
	if h.m.uploadErr != nil {
		t.Errorf("uploadErr = %v after success", h.m.uploadErr)
	}
}

func TestWaitForWatch(t *testing.T) {
	if waitForWatch(nil) != nil {
		t.Error("nil channel should give a nil command")
	}
	ch := make(chan watch.Event, 1)
	ch <- watch.Event{Path: "a.png"}
	if msg, ok := waitForWatch(ch)().(WatchEventMsg); !ok || msg.Event.Path != "a.png" {
		t.Errorf("msg = %#v", msg)
	}
	close(ch)
	if _, ok := waitForWatch(ch)().(watchClosedMsg); !ok {
		t.Error("closed channel should give watchClosedMsg")
	}
}

func TestResize(t *testing.T) {
	h := newHarness(t)
	h.send(tea.WindowSizeMsg{Width: 60, Height: 20})
	if h.m.viewport.Width != 60 {
		t.Errorf("viewport width = %d", h.m.viewport.Width)
	}
	if h.m.viewport.Height < minViewport || h.m.viewport.Height >= 20 {
		t.Errorf("viewport height = %d", h.m.viewport.Height)
	}

	h.send(tea.WindowSizeMsg{Width: 40, Height: 5})
	if h.m.viewport.Height != minViewport {
		t.Errorf("viewport height = %d, want minimum %d", h.m.viewport.Height, minViewport)
	}
}

func TestUploadMessage(t *testing.T) {
	single := &intake.BatchError{Reasons: []error{intake.ErrTooLarge}}
	if got := uploadMessage(single); got != intake.ErrTooLarge.Error() {
		t.Errorf("single = %q", got)
	}
	multi := &intake.BatchError{Reasons: []error{intake.ErrTooLarge, intake.ErrNotImage}}
	if got := uploadMessage(multi); !strings.HasSuffix(got, "(+1 more)") {
		t.Errorf("multi = %q", got)
	}
}
