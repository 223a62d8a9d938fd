// cmd/matchctl/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"opportunity-matcher/internal/bootstrap"
	"opportunity-matcher/internal/common/config"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/matching"
	"opportunity-matcher/internal/session"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup always happens
// before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("matchctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file (defaults to ./configs/config.yaml)")
	userID := fs.Int64("user-id", 0, "Signed-in student user id")
	token := fs.String("token", os.Getenv("MATCH_TOKEN"), "Bearer token for the student")
	gpa := fs.String("gpa", "", "GPA, blank to omit")
	skills := fs.String("skills", "", "Comma-separated skills")
	goals := fs.String("goals", "", "Comma-separated goals")
	strengths := fs.String("strengths", "", "Comma-separated strengths")
	interests := fs.String("interests", "", "Comma-separated interests")
	asJSON := fs.Bool("json", false, "Print the ranked view as JSON")
	logLevel := fs.String("log-level", "warn", "Log level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	cfg.Session.Backend = "static"

	log := logger.NewStructured(*logLevel, "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var static *session.Session
	if *userID > 0 && *token != "" {
		static = &session.Session{Token: *token, User: session.User{ID: *userID}}
	}

	components, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{Static: static})
	if err != nil {
		fmt.Fprintf(stderr, "Error building matching client: %v\n", err)
		return 1
	}
	defer components.Close()

	controller := matching.NewController(components.Matcher, *userID, log)
	defer controller.Teardown()

	snap, err := controller.Submit(ctx, matching.RawForm{
		GPA:       *gpa,
		Skills:    *skills,
		Goals:     *goals,
		Strengths: *strengths,
		Interests: *interests,
	})
	if err != nil {
		fmt.Fprintln(stderr, messageFor(snap, err))
		return exitCode(err)
	}

	if *asJSON {
		err = writeJSON(stdout, snap.Results)
	} else {
		err = writeView(stdout, snap.Results)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error writing results: %v\n", err)
		return 1
	}
	return 0
}
