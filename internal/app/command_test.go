package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"SentimentPipeline/internal/config"
)

type stoppedRunner struct{ ran bool }

func (r *stoppedRunner) Run(context.Context) error {
	r.ran = true
	return nil
}

func TestCommandStartupFailureExitsNonZero(t *testing.T) {
	cmd := NewCommand("enrichment-consumer", "test", func(context.Context, config.Config, *slog.Logger) (*Application, error) {
		return nil, errors.New("server selection timeout")
	})
	cmd.SetArgs([]string{"start"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if code := Execute(cmd); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestCommandGracefulStopExitsZero(t *testing.T) {
	loop := &stoppedRunner{}
	cmd := NewCommand("crawl-scheduler", "test", func(_ context.Context, cfg config.Config, log *slog.Logger) (*Application, error) {
		cfg.Metrics.Addr = ""
		return &Application{cfg: cfg, logger: log, main: loop}, nil
	})
	cmd.SetArgs([]string{"start", "--config", ""})

	if code := Execute(cmd); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !loop.ran {
		t.Fatal("expected main loop to run")
	}
}

func TestCommandRejectsUnknownSubcommand(t *testing.T) {
	cmd := NewCommand("crawl-scheduler", "test", func(context.Context, config.Config, *slog.Logger) (*Application, error) {
		t.Fatal("builder must not run")
		return nil, nil
	})
	cmd.SetArgs([]string{"stop"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if code := Execute(cmd); code == 0 {
		t.Fatal("expected non-zero exit code for unknown subcommand")
	}
}

func TestApplicationCloseRunsClosersInReverse(t *testing.T) {
	var order []string
	a := &Application{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	a.closers = []func(context.Context) error{
		func(context.Context) error { order = append(order, "mongo"); return nil },
		func(context.Context) error { order = append(order, "postgres"); return errors.New("already closed") },
	}

	a.close(context.Background())

	if len(order) != 2 || order[0] != "postgres" || order[1] != "mongo" {
		t.Fatalf("unexpected close order %v", order)
	}
	if a.closers != nil {
		t.Fatal("expected closers to be cleared")
	}
}
