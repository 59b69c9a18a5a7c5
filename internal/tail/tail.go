// Package tail incrementally reads newly appended auth log lines and records
// successful SSH logins.
package tail

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/secsuite/hostwatch/internal/model"
)

// Both substrings must appear in a line for it to count as a login.
const (
	daemonMarker  = "sshd"
	successMarker = "Accepted"
)

// EventSink receives one login event per matched line.
type EventSink interface {
	InsertLoginEvent(ctx context.Context, ev model.LoginEvent) error
}

// LoginWatcher polls an append-only auth log for successful SSH logins.
// Historical lines present before startup are never reprocessed; the file is
// opened once, so a rotated log stops producing lines until restart.
type LoginWatcher struct {
	path         string
	sink         EventSink
	pollInterval time.Duration
	now          func() time.Time
}

// NewLoginWatcher creates a watcher for the auth log at path.
func NewLoginWatcher(path string, sink EventSink) *LoginWatcher {
	return &LoginWatcher{
		path:         path,
		sink:         sink,
		pollInterval: time.Second,
		now:          time.Now,
	}
}

// Matches reports whether a log line is a successful SSH login.
func Matches(line string) bool {
	return strings.Contains(line, daemonMarker) && strings.Contains(line, successMarker)
}

// Run tails the log until ctx is cancelled. If the log cannot be opened the
// watcher logs the failure and returns nil, leaving the rest of the process
// running.
func (w *LoginWatcher) Run(ctx context.Context) error {
	f, err := os.Open(w.path)
	if err != nil {
		slog.Error("opening auth log, login monitoring disabled", "path", w.path, "error", err)
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		slog.Error("seeking auth log, login monitoring disabled", "path", w.path, "error", err)
		return nil
	}

	slog.Info("login watcher started", "path", w.path)

	reader := bufio.NewReader(f)
	var partial strings.Builder

	for {
		chunk, err := reader.ReadString('\n')
		if err == nil {
			line := partial.String() + strings.TrimRight(chunk, "\n")
			partial.Reset()
			w.handleLine(ctx, line)
			continue
		}

		// Hold any partial trailing line until its newline is appended.
		partial.WriteString(chunk)

		select {
		case <-ctx.Done():
			slog.Info("login watcher stopped", "path", w.path)
			return ctx.Err()
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *LoginWatcher) handleLine(ctx context.Context, line string) {
	if !Matches(line) {
		return
	}
	ev := model.LoginEvent{
		Timestamp: w.now().Unix(),
		LogEntry:  line,
	}
	if err := w.sink.InsertLoginEvent(ctx, ev); err != nil {
		slog.Error("storing login event", "error", err)
	}
}
