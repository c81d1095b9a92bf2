// Package app wires one scheduling invocation together: catalog load,
// dirtiness marking, task-graph construction and submission.
package app

import (
	"io"
	"log/slog"

	"github.com/vk/buildsched/internal/queue"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	client queue.Client
}

// New constructs an App with its own isolated logger. The queue client is
// injected so tests can substitute a fake; a nil client is only valid for
// dry-run and check-only configurations.
func New(outW io.Writer, cfg *Config, client queue.Client) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config: cfg,
		client: client,
	}
}
