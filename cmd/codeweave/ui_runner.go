package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"codeweave/internal/dex"
	"codeweave/internal/driver"
	"codeweave/internal/observ"
	"codeweave/internal/ui"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// shouldUseTUI reports whether the progress view is shown. Auto mode needs
// both stdout and stderr on a terminal so that traces do not garble it.
func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout) && isTerminal(os.Stderr)
	}
}

type runOutcome struct {
	report *driver.Report
	timing observ.Report
	err    error
}

// runWithUI runs the instrumentation of in while a progress view follows it.
func runWithUI(ctx context.Context, in, out string, opts driver.RunOptions) (*driver.Report, observ.Report, error) {
	// the view needs the class list before the run starts
	bin, err := dex.Load(in)
	if err != nil {
		return nil, observ.Report{}, err
	}
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		o := opts
		o.Progress = driver.ChannelSink{Ch: events}
		rep, timing, err := driver.Run(ctx, in, out, o)
		outcomeCh <- runOutcome{report: rep, timing: timing, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("instrument "+in, driver.Classes(bin), driver.NumMethods(bin), events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// keep the run going without a consumer
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		return outcome.report, outcome.timing, uiErr
	}
	return outcome.report, outcome.timing, outcome.err
}
