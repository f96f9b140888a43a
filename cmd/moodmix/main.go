// Command moodmix turns a line of mood text into a Spotify playlist and
// prints the result as JSON.
//
// Usage:
//
//	moodmix feeling sunny and restless
//	USER_TEXT="rainy sunday" moodmix
//	moodmix -login
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/app"
	"github.com/ewilliams-labs/moodmix/internal/config"
	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is the whole command. Every pipeline outcome, including bad input and
// bad configuration, is reported as one JSON object on stdout.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("moodmix", flag.ContinueOnError)
	fs.SetOutput(stderr)
	login := fs.Bool("login", false, "authorize with Spotify and print a refresh token")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text := moodText(getenv("USER_TEXT"), fs.Args())
	if !*login && strings.TrimSpace(text) == "" {
		writeOutput(stdout, domain.ErrorResult{Error: domain.ErrNoMoodText.Error()})
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		if *login {
			fmt.Fprintln(stderr, "moodmix:", err)
		} else {
			writeOutput(stdout, domain.ErrorResult{Error: err.Error()})
		}
		return 1
	}
	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()

	if *login {
		if err := runLogin(ctx, cfg.Spotify, stdout); err != nil {
			logger.Error("login failed", zap.Error(err))
			return 1
		}
		return 0
	}

	return generate(ctx, cfg, logger, text, stdout)
}

// moodText prefers USER_TEXT and falls back to the joined arguments.
func moodText(env string, args []string) string {
	if strings.TrimSpace(env) != "" {
		return env
	}
	return strings.Join(args, " ")
}

func generate(ctx context.Context, cfg *config.Config, logger *zap.Logger, text string, out io.Writer) int {
	if strings.TrimSpace(text) == "" {
		writeOutput(out, domain.ErrorResult{Error: domain.ErrNoMoodText.Error()})
		return 1
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		writeOutput(out, domain.ErrorResult{Error: err.Error()})
		return 1
	}
	defer application.Close()

	res, err := application.Orchestrator.Generate(ctx, text)
	if err != nil {
		writeOutput(out, domain.ErrorResult{Error: domain.ErrorMessage(err)})
		return 1
	}
	writeOutput(out, res)
	return 0
}

func writeOutput(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
