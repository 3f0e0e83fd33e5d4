package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/akeeren/courier/internal/app"
	"github.com/akeeren/courier/internal/config"
)

type programRunner interface {
	Run() (tea.Model, error)
	Send(tea.Msg)
}

type programFactory func(tea.Model, ...tea.ProgramOption) programRunner

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, newProgram programFactory) error {
	fs := flag.NewFlagSet("courier", flag.ContinueOnError)
	fs.SetOutput(stderr)
	remoteURL := fs.String("remote", "", "document store base url (overrides COURIER_REMOTE_URL)")
	binID := fs.String("bin", "", "document bin id (overrides COURIER_BIN_ID)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadClientFromEnv()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if *remoteURL != "" {
		cfg.RemoteBaseURL = *remoteURL
	}
	if *binID != "" {
		cfg.BinID = *binID
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	core, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init core: %w", err)
	}

	if newProgram == nil {
		newProgram = func(model tea.Model, options ...tea.ProgramOption) programRunner {
			return tea.NewProgram(model, options...)
		}
	}

	p := newProgram(newRootModel(core), tea.WithAltScreen(), tea.WithInput(stdin), tea.WithOutput(stdout))
	core.SetHooks(hooksFor(p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Run(ctx)

	_, err = p.Run()
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
