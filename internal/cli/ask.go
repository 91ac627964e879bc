// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - one-shot "imagechat ask" command.
//
// Examples:
//   imagechat ask -i cat.png "What breed is this?"
//   imagechat ask -i a.jpg -i b.jpg --json "Which photo is brighter?"
//   imagechat ask --embedded -i receipt.png "What is the total?"

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"

	"github.com/HyugaDev/batch-query-chatbot/internal/config"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/notify"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
)

// AskResult is the --json output of ask.
type AskResult struct {
	Response string   `json:"response"`
	Images   []string `json:"images"`
	Endpoint string   `json:"endpoint"`
}

// HandleAsk runs the ask command against the configured endpoint.
func HandleAsk(ctx context.Context, args Args, cfg *config.Config) error {
	ep, desc, err := NewEndpoint(cfg, args.Embedded)
	if err != nil {
		return err
	}
	return runAsk(ctx, args, ep, desc, os.Stdout, IsStdoutTTY())
}

// runAsk attaches args.Images, sends args.Query once and writes the answer
// to out. Markdown is rendered only when render is set.
func runAsk(ctx context.Context, args Args, ep session.Endpoint, desc string, out io.Writer, render bool) error {
	n := notify.Discard
	if args.Verbose {
		n = stderrNotifier(os.Stderr)
	}

	in := intake.New(n)
	sess := session.New(in, ep).WithNotifier(n)

	accepted, err := in.SubmitPaths(ctx, args.Images)
	if err != nil {
		return err
	}

	if args.Verbose {
		fmt.Fprintf(os.Stderr, "%s %d image(s), %s, via %s\n",
			DimStyle.Render("[ask]"), len(accepted), humanize.IBytes(uint64(in.TotalSize())), desc)
	}

	msg, err := sess.Send(ctx, args.Query)
	if err != nil {
		return err
	}

	if args.JSON {
		names := make([]string, len(accepted))
		for i, img := range accepted {
			names[i] = img.Name
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(AskResult{Response: msg.Content, Images: names, Endpoint: desc})
	}

	displayResponse(out, msg.Content, render)
	return nil
}

// =============================================================================
// MARKDOWN
// =============================================================================

// newMarkdownRenderer builds a glamour renderer sized to the terminal.
func newMarkdownRenderer() (*glamour.TermRenderer, error) {
	width := GetTerminalWidth()
	if width > MaxRenderWidth {
		width = MaxRenderWidth
	}
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails.
func renderMarkdown(content string) string {
	r, err := newMarkdownRenderer()
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse writes a response, rendering markdown only when asked so
// piped output is not corrupted.
func displayResponse(out io.Writer, response string, render bool) {
	if render {
		fmt.Fprint(out, renderMarkdown(response))
		return
	}
	fmt.Fprint(out, response)
	if !strings.HasSuffix(response, "\n") {
		fmt.Fprintln(out)
	}
}

// stderrNotifier prints notifications as status lines.
func stderrNotifier(w io.Writer) notify.Notifier {
	return notify.Func(func(n notify.Notification) {
		var label string
		switch n.Kind {
		case notify.KindSuccess:
			label = SuccessStyle.Render("[OK]")
		case notify.KindError:
			label = ErrorStyle.Render("[X]")
		case notify.KindWarning:
			label = WarningStyle.Render("[!]")
		default:
			label = commandStyle.Render("[i]")
		}
		if n.Message != "" {
			fmt.Fprintf(w, "%s %s: %s\n", label, n.Title, n.Message)
			return
		}
		fmt.Fprintf(w, "%s %s\n", label, n.Title)
	})
}
