// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/lootledger/lootledger/internal/logging"
)

// loggerAdapter bridges Watermill's LoggerAdapter to zerolog.
type loggerAdapter struct {
	fields watermill.LogFields
}

func newLoggerAdapter() watermill.LoggerAdapter {
	return &loggerAdapter{}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	logger := logging.Logger()
	l.emit(logger.Error().Err(err), msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	logger := logging.Logger()
	l.emit(logger.Info(), msg, fields)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	logger := logging.Logger()
	l.emit(logger.Debug(), msg, fields)
}

func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	logger := logging.Logger()
	l.emit(logger.Trace(), msg, fields)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &loggerAdapter{fields: merged}
}

func (l *loggerAdapter) emit(event *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range l.fields {
		event = event.Interface(k, v)
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
