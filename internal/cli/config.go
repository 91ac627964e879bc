// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/HyugaDev/batch-query-chatbot/internal/cloud"
	"github.com/HyugaDev/batch-query-chatbot/internal/config"
)

// HandleConfig runs "imagechat config [init|show|path|get|set]".
func HandleConfig(args Args) error {
	return runConfig(args, os.Stdout)
}

func runConfig(args Args, out io.Writer) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "show":
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		if args.JSON {
			fmt.Fprintln(out, cfg.String())
			return nil
		}
		text, err := cfg.TOML()
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
		return nil

	case "path":
		fmt.Fprintln(out, path)
		return nil

	case "init":
		if err := config.Init(path, args.Force); err != nil {
			if errors.Is(err, config.ErrConfigExists) {
				return fmt.Errorf("%w (use --force to overwrite)", err)
			}
			return err
		}
		fmt.Fprintf(out, "%s wrote %s\n", SuccessStyle.Render("[OK]"), path)
		return nil

	case "get":
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		val, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, displayValue(args.ConfigKey, val))
		return nil

	case "set":
		return setConfigValue(path, args.ConfigKey, args.ConfigVal, out)

	default:
		return fmt.Errorf("%w: unknown config command %q", ErrUsage, args.Subcommand)
	}
}

// setConfigValue edits the file itself. Environment overrides are not
// applied so they never get written to disk.
func setConfigValue(path, key, value string, out io.Writer) error {
	cfg := config.Default()
	isJSON := strings.HasSuffix(strings.ToLower(path), ".json")

	if _, err := os.Stat(path); err == nil {
		load := config.LoadTOML
		if isJSON {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return err
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	save := config.SaveTOML
	if isJSON {
		save = config.SaveJSON
	}
	if err := save(cfg, path); err != nil {
		return err
	}

	val, _ := cfg.Get(key)
	fmt.Fprintf(out, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, displayValue(key, val))
	return nil
}

func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err != nil {
		if jsonPath, jerr := config.ConfigPathJSON(); jerr == nil {
			if _, err := os.Stat(jsonPath); err == nil {
				return jsonPath, nil
			}
		}
	}
	return tomlPath, nil
}

// displayValue formats a config value, masking the API key.
func displayValue(key string, val interface{}) string {
	if strings.EqualFold(strings.TrimSpace(key), "cloud.openrouter_key") {
		s, _ := val.(string)
		return cloud.MaskKey(s)
	}
	if list, ok := val.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprint(val)
}
