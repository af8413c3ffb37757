package main

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"local":       slog.LevelDebug,
		"Development": slog.LevelDebug,
		"production":  slog.LevelInfo,
		"":            slog.LevelInfo,
	}
	for env, want := range cases {
		if got := logLevel(env); got != want {
			t.Fatalf("env %q: level = %v, want %v", env, got, want)
		}
	}
}
