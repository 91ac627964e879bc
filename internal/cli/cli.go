// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/HyugaDev/batch-query-chatbot/internal/config"
	"github.com/HyugaDev/batch-query-chatbot/internal/intake"
)

// Version information (can be overridden at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdServe
	CmdAsk
	CmdChat
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command word.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdServe:
		return "serve"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrUsage marks argument errors. main exits with status 2 for these.
var ErrUsage = errors.New("usage error")

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Quiet      bool
	Verbose    bool
	JSON       bool
	Embedded   bool // run the analysis service in-process instead of over HTTP
	Endpoint   string

	// serve
	Host     string
	Port     int
	Provider string
	Model    string

	// ask
	Query  string
	Images []string

	// tui
	WatchDir string

	// config
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Force      bool

	// Raw args (remaining after the command word)
	Raw []string
}

const usageText = `imagechat - ask questions about a batch of images

Attach up to %d images (JPEG, PNG, GIF, WebP) and ask one question about
all of them. Answers come from OpenRouter or a local Ollama vision model,
with a built-in demo answer when the provider is unavailable.

Usage:
  imagechat                          Start the chat TUI (default)
  imagechat serve                    Run the analysis endpoint
  imagechat chat                     Line-based chat REPL
  imagechat ask -i IMG "question"    Ask a single question
  imagechat config [init|show|path|get|set]
  imagechat version
  imagechat help

Global Flags:
  -c, --config PATH     Config file (default: ~/.imagechat/config.toml)
  --endpoint URL        Analysis endpoint for tui, chat and ask
  --embedded            Analyze in-process instead of calling an endpoint
  --json                JSON output (ask, config show, version)
  -q, --quiet           Minimal output
  -v, --verbose         Verbose output

Serve Flags:
  --host HOST           Listen host (default: 127.0.0.1)
  -p, --port PORT       Listen port (default: 8787)
  --provider NAME       openrouter or ollama
  -m, --model NAME      Provider model

Ask Flags:
  -i, --image PATH      Image to attach (repeatable, up to %d)

TUI Flags:
  -w, --watch DIR       Attach images dropped into DIR

Config Commands:
  imagechat config init [--force]   Write a default config file
  imagechat config show             Print the config (key redacted)
  imagechat config path             Print the config file path
  imagechat config get KEY          Print one value (e.g. server.port)
  imagechat config set KEY VALUE    Change one value and save

Environment:
  OPENROUTER_API_KEY    OpenRouter key (also read from ./.env)
  IMAGECHAT_*           Overrides, e.g. IMAGECHAT_PORT, IMAGECHAT_PROVIDER

Examples:
  imagechat serve --provider ollama --model llava:13b
  imagechat ask -i cat.png -i dog.jpg "Which animal looks happier?"
  imagechat ask --embedded --json -i receipt.png "What is the total?"
  imagechat --watch ~/Pictures/inbox

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, intake.MaxImages, intake.MaxImages, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("imagechat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// VersionInfo is the --json form of PrintVersion.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentVersion returns the build's version information.
func CurrentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args. Usage errors are printed and exit with status 2.
func Parse() (Command, Args) {
	cmd, args, err := ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("[ERROR]")+" "+err.Error())
		fmt.Fprintln(os.Stderr, "Run 'imagechat help' for usage.")
		os.Exit(2)
	}
	return cmd, args
}

// ParseArgs parses argv (without the program name).
func ParseArgs(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	cmd := strings.ToLower(remaining[0])
	rest := remaining[1:]
	args.Raw = rest

	switch cmd {
	case "tui":
		return CmdTUI, args, parseTUIArgs(&args, rest)
	case "serve", "server":
		return CmdServe, args, parseServeArgs(&args, rest)
	case "ask":
		return CmdAsk, args, parseAskArgs(&args, rest)
	case "chat":
		return CmdChat, args, nil
	case "config":
		return CmdConfig, args, parseConfigArgs(&args, rest)
	case "version", "--version", "-V":
		return CmdVersion, args, nil
	case "help", "--help", "-h":
		return CmdHelp, args, nil
	default:
		// A bare --watch before any command word still means the TUI.
		if strings.HasPrefix(cmd, "-") {
			args.Raw = remaining
			return CmdTUI, args, parseTUIArgs(&args, remaining)
		}
		return CmdHelp, args, fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// parseGlobalFlags extracts global flags from args and returns the rest.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var remaining []string
	var args Args

	takeValue := func(i int, flag string) (string, error) {
		if i+1 >= len(argv) {
			return "", fmt.Errorf("%w: %s requires a value", ErrUsage, flag)
		}
		return argv[i+1], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args, nil
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--embedded":
			args.Embedded = true
		case arg == "-c" || arg == "--config":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, args, err
			}
			args.ConfigPath = v
			i++
		case arg == "--endpoint":
			v, err := takeValue(i, arg)
			if err != nil {
				return nil, args, err
			}
			args.Endpoint = v
			i++
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--endpoint="):
			args.Endpoint = strings.TrimPrefix(arg, "--endpoint=")
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, args, nil
}

func parseTUIArgs(args *Args, rest []string) error {
	p := NewArgParser(rest)
	args.WatchDir = p.Flag("w", "watch")
	if p.PositionalCount() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, p.Positional(0))
	}
	return nil
}

func parseServeArgs(args *Args, rest []string) error {
	p := NewArgParser(rest)
	args.Host = p.Flag("host")
	args.Provider = p.Flag("provider")
	args.Model = p.Flag("m", "model")
	if v := p.Flag("p", "port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("%w: invalid port %q", ErrUsage, v)
		}
		args.Port = port
	}
	return nil
}

func parseAskArgs(args *Args, rest []string) error {
	p := NewArgParser(rest)
	args.Images = p.FlagValues("i", "image")
	args.Provider = p.Flag("provider")
	args.Model = p.Flag("m", "model")
	args.Query = JoinPositionalArgs(p, 0)

	if strings.TrimSpace(args.Query) == "" {
		return fmt.Errorf("%w: ask needs a question", ErrUsage)
	}
	if len(args.Images) == 0 {
		return fmt.Errorf("%w: ask needs at least one --image", ErrUsage)
	}
	return nil
}

func parseConfigArgs(args *Args, rest []string) error {
	p := NewArgParser(rest, "force", "f")
	args.Subcommand = strings.ToLower(p.Subcommand())
	args.ConfigKey = p.Positional(1)
	args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
	args.Force = p.BoolFlag("force", "f")

	switch args.Subcommand {
	case "", "show", "path", "init":
	case "get":
		if args.ConfigKey == "" {
			return fmt.Errorf("%w: config get needs a key", ErrUsage)
		}
	case "set":
		if args.ConfigKey == "" || p.PositionalCount() < 3 {
			return fmt.Errorf("%w: config set needs a key and a value", ErrUsage)
		}
	default:
		return fmt.Errorf("%w: unknown config command %q", ErrUsage, args.Subcommand)
	}
	return nil
}

// =============================================================================
// CONFIG WIRING
// =============================================================================

// LoadConfig loads the config file named by --config, or the default
// location, and applies command-line overrides on top.
func LoadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return ApplyArgs(cfg, args)
}

// ApplyArgs copies command-line overrides into cfg and re-validates.
func ApplyArgs(cfg *config.Config, args Args) (*config.Config, error) {
	if args.Host != "" {
		cfg.Server.Host = args.Host
	}
	if args.Port != 0 {
		cfg.Server.Port = args.Port
	}
	if args.Provider != "" {
		cfg.Provider.Name = strings.ToLower(args.Provider)
	}
	if args.Model != "" {
		cfg.Provider.Model = args.Model
	}
	if args.Endpoint != "" {
		cfg.Client.Endpoint = args.Endpoint
	}
	if args.WatchDir != "" {
		cfg.Client.WatchDir = args.WatchDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}
