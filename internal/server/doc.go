// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the image analysis service over HTTP.
//
// # Endpoints
//
//   - POST /analyze - answer a question about up to four images
//   - GET  /health  - version and provider status
//   - GET  /limits  - upload constraints for clients
//   - GET  /stats   - request counters
//
// Every error body is {"error": "..."}. Provider failures never surface as
// errors: the analysis service answers with its fallback instead.
//
// # Middleware
//
// Requests pass through panic recovery, security headers, request logging,
// CORS and a per-IP token bucket limiter (golang.org/x/time/rate), in that
// order.
//
// # Usage
//
//	svc := analysis.NewService(analysis.NewOpenRouterAnalyzer(client))
//	srv := server.NewServer(svc).WithAddr("127.0.0.1", 8787)
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
