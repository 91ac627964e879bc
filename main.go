// imagechat - ask one question about a batch of images.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HyugaDev/batch-query-chatbot/internal/cli"
	"github.com/HyugaDev/batch-query-chatbot/internal/config"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/chat"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/components"
	"github.com/HyugaDev/batch-query-chatbot/internal/ui/styles"
	"github.com/HyugaDev/batch-query-chatbot/internal/watch"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cmd, args := cli.Parse()
	if err := run(cmd, args); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorStyle.Render("[ERROR]")+" "+err.Error())
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cmd cli.Command, args cli.Args) error {
	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage()
		return nil
	case cli.CmdVersion:
		if args.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cli.CurrentVersion())
		}
		cli.PrintVersion()
		return nil
	case cli.CmdConfig:
		return cli.HandleConfig(args)
	}

	cfg, err := cli.LoadConfig(args)
	if err != nil {
		return err
	}

	// The server logs every request. Client commands only log with -v.
	if cmd != cli.CmdServe && !args.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx := context.Background()
	switch cmd {
	case cli.CmdServe:
		return cli.HandleServe(ctx, args, cfg)
	case cli.CmdAsk:
		return cli.HandleAsk(ctx, args, cfg)
	case cli.CmdChat:
		return cli.HandleChat(ctx, args, cfg)
	default:
		return runTUI(args, cfg)
	}
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(args cli.Args, cfg *config.Config) error {
	if !cli.IsTTY() {
		return fmt.Errorf("%w: the TUI needs a terminal; use 'imagechat chat' or 'imagechat ask'", cli.ErrUsage)
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	if cfg.Client.LogFile != "" {
		f, err := tea.LogToFile(cfg.Client.LogFile, "imagechat")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	toasts := components.NewToastManager()
	sess, desc, err := cli.NewSession(cfg, args.Embedded, toasts)
	if err != nil {
		return err
	}

	opts := chat.Options{Endpoint: desc}
	if cfg.Client.WatchDir != "" {
		w, err := watch.New(cfg.Client.WatchDir, sess.Intake())
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Close()
		opts.WatchDir = w.Dir()
		opts.Watch = w.Events()
	}

	m := chat.New(styles.NewTheme(), sess, toasts, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
