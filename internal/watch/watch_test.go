// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
)

// =============================================================================
// HELPERS
// =============================================================================

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func startWatcher(t *testing.T) (*Watcher, *intake.Intake, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	in := intake.New(rec)
	w, err := New(t.TempDir(), in)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.WithDebounce(50 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, in, rec
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a watch event")
		return Event{}
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestNew_RejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(file, pngData, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file, intake.New(nil)); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("err = %v, want ErrNotDirectory", err)
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing"), intake.New(nil)); err == nil {
		t.Error("missing directory should fail")
	}
}

func TestWatcher_SubmitsDroppedImage(t *testing.T) {
	w, in, rec := startWatcher(t)

	path := filepath.Join(w.Dir(), "cat.png")
	if err := os.WriteFile(path, pngData, 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if ev.Err != nil {
		t.Fatalf("event error: %v", ev.Err)
	}
	if ev.Path != path || len(ev.Images) != 1 || ev.Images[0].Name != "cat.png" {
		t.Errorf("event = %+v", ev)
	}
	if in.Count() != 1 {
		t.Errorf("intake Count = %d, want 1", in.Count())
	}
	if rec.Count(notify.KindSuccess) != 1 {
		t.Errorf("success notifications = %d", rec.Count(notify.KindSuccess))
	}
}

func TestWatcher_IgnoresHiddenAndPartial(t *testing.T) {
	w, in, _ := startWatcher(t)

	for _, name := range []string{".hidden.png", "photo.png.crdownload", "draft.tmp"} {
		if err := os.WriteFile(filepath.Join(w.Dir(), name), pngData, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(w.Dir(), "real.png"), pngData, 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if filepath.Base(ev.Path) != "real.png" {
		t.Errorf("first event for %s, want real.png", ev.Path)
	}
	if in.Count() != 1 {
		t.Errorf("intake Count = %d, want 1", in.Count())
	}
}

func TestWatcher_ReportsRejection(t *testing.T) {
	w, in, rec := startWatcher(t)

	if err := os.WriteFile(filepath.Join(w.Dir(), "notes.txt"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if !errors.Is(ev.Err, intake.ErrNotImage) {
		t.Errorf("err = %v, want ErrNotImage", ev.Err)
	}
	if in.Count() != 0 {
		t.Errorf("intake Count = %d, want 0", in.Count())
	}
	if rec.Count(notify.KindError) != 1 {
		t.Errorf("error notifications = %d", rec.Count(notify.KindError))
	}
}

func TestSettled(t *testing.T) {
	w, err := New(t.TempDir(), intake.New(nil))
	if err != nil {
		t.Fatal(err)
	}
	w.WithDebounce(time.Second)

	now := time.Now()
	w.pending["old"] = now.Add(-2 * time.Second)
	w.pending["new"] = now

	ready := w.settled(now)
	if len(ready) != 1 || ready[0] != "old" {
		t.Errorf("settled = %v, want [old]", ready)
	}
	if _, ok := w.pending["new"]; !ok {
		t.Error("unsettled path was dropped")
	}
}

func TestIgnored(t *testing.T) {
	tests := map[string]bool{
		"/x/cat.png":           false,
		"/x/.DS_Store":         true,
		"/x/a.jpg.part":        true,
		"/x/b.PNG.CRDOWNLOAD":  true,
		"/x/backup.png~":       true,
		"/x/holiday photo.jpg": false,
	}
	for path, want := range tests {
		if got := ignored(path); got != want {
			t.Errorf("ignored(%q) = %v, want %v", path, got, want)
		}
	}
}
