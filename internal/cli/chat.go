// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - line-based "imagechat chat" REPL.
//
// Interactive Commands (during chat):
//   /attach PATH...     Attach images (quoted or escaped paths)
//   /remove N|ID        Remove an attached image
//   /clear              Remove all attached images
//   /images             List attached images
//   /copy               Copy the last answer to the clipboard
//   /good, /bad         Rate the last answer
//   /history            Show the transcript
//   /help, /h           Show available commands
//   /quit, /q           Exit chat
//
// Pasting or dragging image files onto the prompt attaches them.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"

	"github.com/HyugaDev/batch-query-chatbot/internal/config"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
	"github.com/HyugaDev/batch-query-chatbot/internal/session"
	"github.com/HyugaDev/batch-query-chatbot/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of input. ChatCLI is the terminal version.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	var sb strings.Builder
	if _, err := c.line.WriteHistory(&sb); err != nil {
		return
	}
	_ = util.AtomicWriteFile(c.historyFile, []byte(sb.String()), 0600)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// Repl is one interactive chat.
type Repl struct {
	sess     *session.Session
	input    lineReader
	out      io.Writer
	endpoint string
	render   bool
	quiet    bool

	started time.Time
	queries int
}

// HandleChat starts the REPL on the terminal.
func HandleChat(ctx context.Context, args Args, cfg *config.Config) error {
	sess, desc, err := NewSession(cfg, args.Embedded, stderrNotifier(os.Stdout))
	if err != nil {
		return err
	}
	r := &Repl{
		sess:     sess,
		input:    NewChatCLI(),
		out:      os.Stdout,
		endpoint: desc,
		render:   IsStdoutTTY(),
		quiet:    args.Quiet,
	}
	return r.Run(ctx)
}

// Run reads lines until /quit, Ctrl+C or EOF.
func (r *Repl) Run(ctx context.Context) error {
	r.started = time.Now()
	defer r.input.Close()

	if !r.quiet {
		r.printWelcome()
	}

	for {
		input, err := r.input.ReadInput(promptStyle.Render(r.prompt()))
		if err != nil {
			// Ctrl+C (liner.ErrPromptAborted), Ctrl+D (io.EOF) or a closed
			// terminal all end the chat.
			fmt.Fprintln(r.out)
			r.printExitSummary()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Absolute paths also start with "/", so dropped files win.
		if paths, ok := intake.DroppedPaths(input); ok {
			r.attach(ctx, paths)
			continue
		}

		if strings.HasPrefix(input, "/") {
			cont, err := r.handleSlashCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !cont {
				r.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			r.printExitSummary()
			return nil
		}

		r.ask(ctx, input)
	}
}

func (r *Repl) prompt() string {
	if n := r.sess.Intake().Count(); n > 0 {
		return fmt.Sprintf("imagechat [%d/%d]> ", n, intake.MaxImages)
	}
	return "imagechat> "
}

// ask sends one query. Validation failures are shown inline; transport
// failures already arrived as a notification.
func (r *Repl) ask(ctx context.Context, query string) {
	msg, err := r.sess.Send(ctx, query)
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintln(r.out, WarningStyle.Render("[!]")+" "+verr.Error())
		return
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(r.out, WarningStyle.Render("[!]")+" "+err.Error())
		return
	case err != nil:
		fmt.Fprintln(r.out, ErrorStyle.Render(msg.Content))
		return
	}

	r.queries++
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, botLabelStyle.Render("Answer"))
	displayResponse(r.out, msg.Content, r.render)
	fmt.Fprintln(r.out, DimStyle.Render("/copy to copy, /good or /bad to rate"))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (r *Repl) handleSlashCommand(ctx context.Context, cmd string) (bool, error) {
	name, rest, _ := strings.Cut(cmd, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/help", "/h", "/?", "/":
		r.printHelp()
	case "/quit", "/q", "/exit":
		return false, nil
	case "/attach", "/a":
		paths := intake.ParsePaths(rest)
		if len(paths) == 0 {
			return true, errors.New("usage: /attach PATH...")
		}
		r.attach(ctx, paths)
	case "/remove", "/rm":
		return true, r.remove(rest)
	case "/clear":
		r.sess.Intake().Clear()
		fmt.Fprintln(r.out, commandStyle.Render("[Images cleared]"))
	case "/images", "/ls":
		r.printImages()
	case "/copy":
		// Failures are notified by the session.
		_ = r.sess.CopyLast()
	case "/good", "/bad":
		last, ok := r.sess.LastResponse()
		if !ok {
			return true, errors.New("no answer to rate yet")
		}
		_ = r.sess.Feedback(last.ID, name == "/good")
	case "/history":
		r.printHistory()
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", name)
	}
	return true, nil
}

// attach submits paths as one batch. Rejections are notified by intake.
func (r *Repl) attach(ctx context.Context, paths []string) {
	if _, err := r.sess.Intake().SubmitPaths(ctx, paths); err != nil {
		return
	}
	r.printImages()
}

func (r *Repl) remove(arg string) error {
	in := r.sess.Intake()
	if arg == "" {
		return errors.New("usage: /remove N|ID")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		img, ok := in.RemoveAt(n - 1)
		if !ok {
			return fmt.Errorf("no image #%d (have %d)", n, in.Count())
		}
		fmt.Fprintf(r.out, "%s removed %s\n", commandStyle.Render("[-]"), img.Name)
		return nil
	}
	if !in.Remove(arg) {
		return fmt.Errorf("no image with id %s", arg)
	}
	fmt.Fprintf(r.out, "%s removed %s\n", commandStyle.Render("[-]"), arg)
	return nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *Repl) printWelcome() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("imagechat interactive chat"))
	fmt.Fprintln(r.out, DimStyle.Render(strings.Repeat("─", 30)))
	printField(r.out, "Endpoint:", r.endpoint)
	printField(r.out, "Limits:", fmt.Sprintf("%d images, %s each",
		intake.MaxImages, humanize.IBytes(uint64(intake.MaxImageSize))))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Attach images with /attach or drag them here, then ask a question. /help for commands."))
	fmt.Fprintln(r.out)
}

func (r *Repl) printHelp() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("Available Commands"))
	fmt.Fprintln(r.out, DimStyle.Render(strings.Repeat("─", 20)))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/attach PATH...", "Attach images"},
		{"/remove N|ID", "Remove an attached image"},
		{"/clear", "Remove all attached images"},
		{"/images", "List attached images"},
		{"/copy", "Copy the last answer"},
		{"/good, /bad", "Rate the last answer"},
		{"/history", "Show the conversation"},
		{"/help, /h", "Show this help"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n",
			commandStyle.Render(util.PadRight(c.cmd, 18)),
			DimStyle.Render(c.desc))
	}
	fmt.Fprintln(r.out)
}

func (r *Repl) printImages() {
	in := r.sess.Intake()
	images := in.Images()
	if len(images) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("[No images attached]"))
		return
	}
	for i, img := range images {
		fmt.Fprintf(r.out, "  %s %s %s\n",
			commandStyle.Render(fmt.Sprintf("%d.", i+1)),
			util.PadRight(img.Name, 32),
			DimStyle.Render(humanize.IBytes(uint64(img.Size))))
	}
	fmt.Fprintf(r.out, "  %s\n", DimStyle.Render(fmt.Sprintf("%d of %d, %s total",
		len(images), intake.MaxImages, humanize.IBytes(uint64(in.TotalSize())))))
}

func (r *Repl) printHistory() {
	msgs := r.sess.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("[No messages yet]"))
		return
	}
	for i, m := range msgs {
		var who string
		switch m.Kind {
		case session.KindUser:
			who = promptStyle.Render("You")
		case session.KindBot:
			who = botLabelStyle.Render("Bot")
		default:
			who = ErrorStyle.Render("Error")
		}
		content := strings.ReplaceAll(util.TruncateRunes(m.Content, 100), "\n", " ")
		fmt.Fprintf(r.out, "  %d. %s: %s\n", i+1, who, content)
	}
}

func (r *Repl) printExitSummary() {
	if r.queries == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("Goodbye!"))
		return
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, TitleStyle.Render("Session Summary"))
	printField(r.out, "Questions:", strconv.Itoa(r.queries))
	printField(r.out, "Duration:", time.Since(r.started).Round(time.Second).String())
	fmt.Fprintln(r.out, DimStyle.Render("Goodbye!"))
}
