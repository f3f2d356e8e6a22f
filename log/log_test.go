//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zapcore.Level
	}{
		{name: "debug", level: LevelDebug, want: zapcore.DebugLevel},
		{name: "info", level: LevelInfo, want: zapcore.InfoLevel},
		{name: "warn", level: LevelWarn, want: zapcore.WarnLevel},
		{name: "error", level: LevelError, want: zapcore.ErrorLevel},
		{name: "fatal", level: LevelFatal, want: zapcore.FatalLevel},
		{name: "unknown falls back to info", level: "nope", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLevel(tt.level)
			assert.Equal(t, tt.want, zapLevel.Level())
		})
	}
	SetLevel(LevelInfo)
}

type recordingLogger struct {
	Logger
	messages []string
}

func (r *recordingLogger) Infof(format string, args ...any) {
	r.messages = append(r.messages, format)
}

func TestDefaultIsReplaceable(t *testing.T) {
	orig := Default
	defer func() { Default = orig }()

	rec := &recordingLogger{}
	Default = rec
	Infof("hello %s", "world")
	require.Len(t, rec.messages, 1)
	assert.Equal(t, "hello %s", rec.messages[0])
}
