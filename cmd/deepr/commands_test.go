package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/deepr/internal/config"
	"github.com/kalambet/deepr/internal/research"
)

// fakeAgent is a scripted research.Agent for command tests.
type fakeAgent struct {
	submitID  string
	submitErr error
	statuses  []research.Status
	statusErr error
	submits   int
	polls     int
}

func (a *fakeAgent) Submit(ctx context.Context, query string) (string, error) {
	a.submits++
	if a.submitErr != nil {
		return "", a.submitErr
	}
	return a.submitID, nil
}

func (a *fakeAgent) Status(ctx context.Context, id string) (research.Status, error) {
	i := a.polls
	a.polls++
	if a.statusErr != nil {
		return research.Status{}, a.statusErr
	}
	if i >= len(a.statuses) {
		i = len(a.statuses) - 1
	}
	return a.statuses[i], nil
}

func stubAgent(t *testing.T, agent research.Agent, cfg config.Config, err error) {
	t.Helper()
	orig := newAgent
	newAgent = func() (research.Agent, config.Config, error) {
		return agent, cfg, err
	}
	t.Cleanup(func() { newAgent = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func completedStatus(id, report string) research.Status {
	stats := research.ComputeStatistics("test-agent", report)
	return research.Status{
		InteractionID: id,
		State:         research.StateCompleted,
		Outputs:       []string{report},
		Statistics:    &stats,
	}
}

func TestResearch_MissingQuery(t *testing.T) {
	_, err := execute(t, "research")
	if err == nil {
		t.Fatal("expected error for missing query argument")
	}
}

func TestResearch_ConfigErrorBeforeAnyCall(t *testing.T) {
	agent := &fakeAgent{submitID: "ix-1"}
	cfgErr := errors.New("missing required config: Gemini API key")
	stubAgent(t, agent, config.Config{}, cfgErr)

	_, err := execute(t, "research", "some topic")
	if !errors.Is(err, cfgErr) {
		t.Fatalf("error = %v, want the configuration error", err)
	}
	if agent.submits != 0 || agent.polls != 0 {
		t.Errorf("agent calls = %d submits / %d polls, want 0 / 0", agent.submits, agent.polls)
	}
}

func TestResearch_CompletedWritesReport(t *testing.T) {
	agent := &fakeAgent{
		submitID: "ix-ok",
		statuses: []research.Status{completedStatus("ix-ok", "report body Y")},
	}
	outDir := t.TempDir()
	stubAgent(t, agent, config.Config{}, nil)

	stdout, err := execute(t, "research", "some", "topic", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if agent.submits != 1 {
		t.Errorf("submits = %d, want 1", agent.submits)
	}
	if agent.polls != 1 {
		t.Errorf("polls = %d, want 1", agent.polls)
	}

	path := strings.TrimSpace(stdout)
	if path == "" {
		t.Fatal("expected the report path on stdout")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report at %q: %v", path, err)
	}
	if string(data) != "report body Y" {
		t.Errorf("report content = %q", string(data))
	}
	if !strings.HasPrefix(path, outDir) {
		t.Errorf("path %q not under --output-dir %q", path, outDir)
	}
}

func TestResearch_FailedSurfacesRemoteDetail(t *testing.T) {
	agent := &fakeAgent{
		submitID: "ix-fail",
		statuses: []research.Status{{
			InteractionID: "ix-fail",
			State:         research.StateFailed,
			ErrorCode:     "RESOURCE_EXHAUSTED",
			ErrorMessage:  "rate limited",
		}},
	}
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "research", "topic")
	if err == nil {
		t.Fatal("expected non-nil error for FAILED interaction")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %q, want it to contain the remote detail", err.Error())
	}
	if agent.polls != 1 {
		t.Errorf("polls = %d, want 1 (no retry after FAILED)", agent.polls)
	}
}

func TestResearch_CancelledIsError(t *testing.T) {
	agent := &fakeAgent{
		submitID: "ix-c",
		statuses: []research.Status{{InteractionID: "ix-c", State: research.StateCancelled}},
	}
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "research", "topic")
	if err == nil {
		t.Fatal("expected error for remotely cancelled research")
	}
	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestResearch_InterruptDuringPollSuspends(t *testing.T) {
	agent := &fakeAgent{
		submitID:  "ix-int",
		statusErr: context.Canceled,
	}
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "research", "topic")
	if err != nil {
		t.Fatalf("an interrupt mid-request should exit cleanly, got: %v", err)
	}
	if agent.polls != 1 {
		t.Errorf("polls = %d, want 1", agent.polls)
	}
}

func TestStatus_Completed(t *testing.T) {
	agent := &fakeAgent{statuses: []research.Status{completedStatus("ix-s", "text")}}
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "status", "ix-s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.polls != 1 {
		t.Errorf("polls = %d, want exactly 1 (status never loops)", agent.polls)
	}
}

func TestStatus_FailedExitsNonZero(t *testing.T) {
	agent := &fakeAgent{statuses: []research.Status{{
		InteractionID: "ix-e",
		State:         research.StateFailed,
		ErrorCode:     "RESOURCE_EXHAUSTED",
		ErrorMessage:  "rate limited",
	}}}
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "status", "ix-e")
	if err == nil {
		t.Fatal("expected error exit for FAILED interaction")
	}
	if agent.polls != 1 {
		t.Errorf("polls = %d, want 1", agent.polls)
	}
}

func TestStatus_CancelledExitsNonZero(t *testing.T) {
	agent := &fakeAgent{statuses: []research.Status{{
		InteractionID: "ix-cx",
		State:         research.StateCancelled,
	}}}
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "status", "ix-cx")
	if err == nil {
		t.Fatal("expected error exit for CANCELLED interaction")
	}
	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestFetchResults_NonTerminalWritesNothing(t *testing.T) {
	agent := &fakeAgent{statuses: []research.Status{
		{InteractionID: "ix-p", State: research.StateProcessing},
	}}
	outDir := t.TempDir()
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "fetch-results", "ix-p", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("non-terminal state should not be an error, got: %v", err)
	}

	entries, readErr := os.ReadDir(outDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("output dir has %d entries, want 0", len(entries))
	}
}

func TestFetchResults_Completed(t *testing.T) {
	agent := &fakeAgent{statuses: []research.Status{completedStatus("ix-f", "fetched Y")}}
	outDir := t.TempDir()
	stubAgent(t, agent, config.Config{}, nil)

	stdout, err := execute(t, "fetch-results", "ix-f", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := strings.TrimSpace(stdout)
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("reading report: %v", readErr)
	}
	if string(data) != "fetched Y" {
		t.Errorf("content = %q", string(data))
	}
	if filepath.Base(path) != "research.md" {
		t.Errorf("file name = %q, want research.md", filepath.Base(path))
	}
}

func TestFetchResults_FailedIsError(t *testing.T) {
	agent := &fakeAgent{statuses: []research.Status{{
		InteractionID: "ix-x",
		State:         research.StateFailed,
		ErrorCode:     "INTERNAL",
		ErrorMessage:  "agent crashed",
	}}}
	stubAgent(t, agent, config.Config{}, nil)

	_, err := execute(t, "fetch-results", "ix-x", "--output-dir", t.TempDir())
	if err == nil {
		t.Fatal("expected error for FAILED interaction")
	}
	if !strings.Contains(err.Error(), "agent crashed") {
		t.Errorf("error = %q, want remote detail", err.Error())
	}
	if agent.polls != 1 {
		t.Errorf("polls = %d, want exactly 1 (the failure detail comes from the single check)", agent.polls)
	}
}

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().IntP("poll-interval", "i", 10, "")
	cmd.Flags().Duration("timeout", research.DefaultSoftTimeout, "")
	cmd.Flags().String("output-dir", "", "")
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd
}

func TestPollIntervalResolution(t *testing.T) {
	cfg := config.Config{}
	cfg.Research.PollInterval = 20

	if got := pollInterval(newFlagCmd(t), cfg); got != 20*time.Second {
		t.Errorf("interval = %v, want 20s from config", got)
	}
	if got := pollInterval(newFlagCmd(t, "--poll-interval", "3"), cfg); got != 3*time.Second {
		t.Errorf("interval = %v, want 3s from flag", got)
	}
	if got := pollInterval(newFlagCmd(t), config.Config{}); got != research.DefaultPollInterval {
		t.Errorf("interval = %v, want default", got)
	}
}

func TestSoftTimeoutResolution(t *testing.T) {
	cfg := config.Config{}
	cfg.Research.SoftTimeout = "2m"

	if got := softTimeout(newFlagCmd(t), cfg); got != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m from config", got)
	}
	if got := softTimeout(newFlagCmd(t, "--timeout", "30s"), cfg); got != 30*time.Second {
		t.Errorf("timeout = %v, want 30s from flag", got)
	}

	cfg.Research.SoftTimeout = "bogus"
	if got := softTimeout(newFlagCmd(t), cfg); got != research.DefaultSoftTimeout {
		t.Errorf("timeout = %v, want default for invalid config", got)
	}
}

func TestNoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "test message"); got != "test message" {
		t.Errorf("colorize with noColor = %q, want plain text", got)
	}

	noColor = false
	if got := colorize(colorGreen, "test message"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize without noColor = %q, want ANSI codes", got)
	}
}
