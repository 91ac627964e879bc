// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the CLI, the TUI and the
// server: crash-safe file writes and width-aware string truncation.
package util
