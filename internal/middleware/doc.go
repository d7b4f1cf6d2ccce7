// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

/*
Package middleware provides the HTTP middleware stack shared by the webhook
and read APIs.

RequestID tags every request with a UUID (propagated from upstream proxies
via X-Request-ID when present) and threads it through the logging context.
PrometheusMetrics records request duration and in-flight counts keyed by
the chi route pattern. Compression gzips responses for clients that accept
it. PerformanceMonitor keeps a sliding window of recent request latencies
for the admin stats endpoint.

Authentication middleware lives in internal/auth; rate limiting is applied
per route group in internal/api.
*/
package middleware
