package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/bouwkansen/pkg/chunks"
	"github.com/vanderheijden86/bouwkansen/pkg/watcher"
)

// StartedMsg carries the result of Session.Start or Session.Retry. Results
// of a session the model no longer holds are dropped.
type StartedMsg struct {
	Session *chunks.Session
	Result  chunks.StartResult
	Err     error
}

// LoadAllDoneMsg carries the result of Session.LoadAll.
type LoadAllDoneMsg struct {
	Session *chunks.Session
	Result  chunks.LoadAllResult
	Err     error
}

// ChunkSettledMsg reports one chunk settling while loads are running.
type ChunkSettledMsg chunks.Event

// DatasetChangedMsg is sent when the local dataset changes on disk.
type DatasetChangedMsg struct {
	Files    []string
	Manifest bool
}

// ExportDoneMsg reports a finished export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// statusClearMsg clears a status message if it is still the one shown.
type statusClearMsg struct{ seq int }

// ReadyTimeoutMsg makes the UI ready even if the terminal never reports its
// size (seen in tmux and over SSH).
type ReadyTimeoutMsg struct{}

// ReadyTimeoutCmd returns a command that sends ReadyTimeoutMsg after 100ms.
func ReadyTimeoutCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return ReadyTimeoutMsg{}
	})
}

// Events buffers coordinator events for the UI. Its OnSettled method is
// passed as chunks.SessionOptions.OnSettled. Events are dropped when the
// buffer is full; the view rereads the store on the next one.
type Events chan chunks.Event

// NewEvents returns an Events buffer.
func NewEvents() Events {
	return make(Events, 64)
}

// OnSettled forwards ev without blocking.
func (e Events) OnSettled(ev chunks.Event) {
	select {
	case e <- ev:
	default:
	}
}

func startCmd(ctx context.Context, s *chunks.Session, retry bool) tea.Cmd {
	return func() tea.Msg {
		var (
			res chunks.StartResult
			err error
		)
		if retry {
			res, err = s.Retry(ctx)
		} else {
			res, err = s.Start(ctx)
		}
		return StartedMsg{Session: s, Result: res, Err: err}
	}
}

func loadAllCmd(ctx context.Context, s *chunks.Session) tea.Cmd {
	return func() tea.Msg {
		res, err := s.LoadAll(ctx)
		return LoadAllDoneMsg{Session: s, Result: res, Err: err}
	}
}

func waitEventCmd(ctx context.Context, events Events) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev := <-events:
			return ChunkSettledMsg(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

// WatchDatasetCmd waits for the next dataset change.
func WatchDatasetCmd(w *watcher.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		c := <-w.Changes()
		return DatasetChangedMsg{Files: c.Files, Manifest: c.Manifest}
	}
}

func clearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusClearMsg{seq: seq}
	})
}
