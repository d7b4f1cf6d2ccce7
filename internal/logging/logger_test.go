// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_LevelParsing(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		Init(Config{Level: tt.level})
		if got := GetLevel(); got != tt.want {
			t.Errorf("Init(level=%q): got level %v, want %v", tt.level, got, tt.want)
		}
	}

	// Restore defaults for other tests
	Init(DefaultConfig())
}

func TestLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	old := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(old)

	Info().Str("player", "zezima").Int64("value", 1000).Msg("drop received")

	out := buf.String()
	if !strings.Contains(out, `"player":"zezima"`) {
		t.Errorf("expected player field in output, got %s", out)
	}
	if !strings.Contains(out, `"value":1000`) {
		t.Errorf("expected value field in output, got %s", out)
	}
	if !strings.Contains(out, "drop received") {
		t.Errorf("expected message in output, got %s", out)
	}
}

func TestCtx_RequestAndSubmissionIDs(t *testing.T) {
	var buf bytes.Buffer
	old := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(old)

	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-123")
	ctx = ContextWithSubmissionID(ctx, "sub-456")

	Ctx(ctx).Info().Msg("pipeline stage")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Errorf("expected request_id in output, got %s", out)
	}
	if !strings.Contains(out, `"submission_id":"sub-456"`) {
		t.Errorf("expected submission_id in output, got %s", out)
	}
}

func TestCtx_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	old := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(old)

	Ctx(context.Background()).Info().Msg("no ids")

	out := buf.String()
	if strings.Contains(out, "request_id") {
		t.Errorf("expected no request_id field, got %s", out)
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	old := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(old)

	slogger := NewSlogLogger()
	slogger.Info("hello", "destination", "discord")

	out := buf.String()
	if !strings.Contains(out, `"destination":"discord"`) {
		t.Errorf("expected attr from slog record, got %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected message from slog record, got %s", out)
	}
}
