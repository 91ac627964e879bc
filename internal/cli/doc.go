// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands for
// imagechat.
//
// # Key Types
//
//   - Command: enumeration of the CLI commands
//   - Args: parsed global and command-specific flags
//   - ArgParser: flag parser shared by every command
//   - Repl: the line-based chat behind "imagechat chat"
//   - LocalEndpoint: an in-process analysis service for --embedded
//
// # Usage
//
//	cmd, args := cli.Parse()
//	cfg, err := cli.LoadConfig(args)
//	switch cmd {
//	case cli.CmdServe:
//	    err = cli.HandleServe(ctx, args, cfg)
//	case cli.CmdAsk:
//	    err = cli.HandleAsk(ctx, args, cfg)
//	}
//
// # Commands
//
//   - tui: full-screen chat (default)
//   - serve: the POST /analyze endpoint
//   - chat: line-based chat with history and slash commands
//   - ask: one question, markdown rendered on a terminal or --json
//   - config: init, show, path, get, set
//   - version, help
//
// Output is colored only when stdout is a terminal and NO_COLOR is unset.
package cli
