// Package tui implements the interactive session view.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/mlegge/hatchd/internal/cliutil"
	"github.com/mlegge/hatchd/internal/events"
)

const (
	tableTitle          = "Processes"
	logsTitle           = "Events"
	defaultLogRetention = 500
)

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of event records retained per process.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// UI coordinates the interactive status interface backed by tview.
type UI struct {
	app    *tview.Application
	table  *tview.Table
	logs   *tview.TextView
	events chan events.Event

	procs map[events.Process]*processState

	selected   events.Process
	logsPretty bool
	maxLogs    int

	mu sync.RWMutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type processState struct {
	name      events.Process
	firstSeen time.Time
	lastEvent time.Time
	state     string
	port      string
	running   bool
	errors    int

	logs []cliutil.LogRecord
}

// rowOrder keeps the table stable: keystore above runtime.
var rowOrder = []events.Process{events.ProcessKeystore, events.ProcessRuntime}

// New constructs a UI for one supervised session.
func New(opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)
	logs.SetChangedFunc(func() {
		app.Draw()
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(logs, 0, 3, false)

	ui := &UI{
		app:        app,
		table:      table,
		logs:       logs,
		events:     make(chan events.Event, 256),
		procs:      make(map[events.Process]*processState),
		selected:   events.ProcessRuntime,
		logsPretty: false,
		maxLogs:    defaultLogRetention,
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	for _, proc := range rowOrder {
		ui.procs[proc] = &processState{name: proc, running: true}
	}

	table.SetSelectionChangedFunc(func(row, column int) {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		if row >= 1 && row-1 < len(rowOrder) {
			ui.selected = rowOrder[row-1]
		}
		ui.renderLogsLocked()
	})

	app.SetRoot(flex, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.mu.Unlock()

	return ui
}

// EventSink exposes the channel where session events should be delivered.
func (u *UI) EventSink() chan<- events.Event {
	return u.events
}

// CloseEvents releases the event channel so internal goroutines exit cleanly.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
}

// Done returns a channel closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and processes incoming events until Stop
// is invoked or the context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop and releases resources.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	draining := false
	ctxDone := ctx.Done()

	for {
		var tick <-chan time.Time
		if !draining {
			tick = ticker.C
		}

		select {
		case <-ctxDone:
			if !draining {
				draining = true
				ticker.Stop()
			}
			ctxDone = nil
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			if draining {
				continue
			}
			u.applyEvent(evt)
		case <-tick:
			if !draining {
				u.queueRefresh(false)
			}
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case 'j', 'J':
			u.toggleJSON()
			return nil
		}
	}
	return event
}

func (u *UI) toggleJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logsPretty = !u.logsPretty
	u.renderLogsLocked()
}

func (u *UI) applyEvent(evt events.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	u.mu.Lock()

	state := u.procs[evt.Process]
	if state == nil {
		state = &processState{name: evt.Process, firstSeen: evt.Timestamp, running: true}
		u.procs[evt.Process] = state
	}
	state.lastEvent = evt.Timestamp
	if state.firstSeen.IsZero() {
		state.firstSeen = evt.Timestamp
	}

	switch evt.Type {
	case events.EventTypeStatus:
		state.state = evt.State.String()
	case events.EventTypePort:
		state.port = evt.Port
	case events.EventTypeError:
		state.errors++
	case events.EventTypeKeystoreExited, events.EventTypeRuntimeExited:
		state.running = false
	}

	record := cliutil.NewLogRecord(evt)
	state.logs = append(state.logs, record)
	if len(state.logs) > u.maxLogs {
		trim := len(state.logs) - u.maxLogs
		state.logs = append([]cliutil.LogRecord(nil), state.logs[trim:]...)
	}

	updateLogs := state.name == u.selected
	u.mu.Unlock()

	u.queueRefresh(updateLogs)
}

func (u *UI) queueRefresh(updateLogs bool) {
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshTableLocked()
		if updateLogs {
			u.renderLogsLocked()
		}
	})
}

func (u *UI) refreshTableLocked() {
	u.table.Clear()

	headers := []string{"PROCESS", "STATE", "PORT", "RUNNING", "ERRORS", "AGE"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	for row, name := range rowOrder {
		state := u.procs[name]
		age := "-"
		if !state.firstSeen.IsZero() {
			age = time.Since(state.firstSeen).Truncate(time.Second).String()
		}
		running := "No"
		if state.running {
			running = "Yes"
		}
		display := state.state
		if display == "" {
			display = "-"
		}
		port := state.port
		if port == "" {
			port = "-"
		}

		values := []string{
			string(name),
			display,
			port,
			running,
			fmt.Sprintf("%d", state.errors),
			age,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell = cell.SetReference(string(name))
			}
			u.table.SetCell(row+1, col, cell)
		}
	}
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	state := u.procs[u.selected]
	if state == nil {
		u.logs.SetTitle(logsTitle)
		return
	}

	u.logs.SetTitle(fmt.Sprintf("%s (%s)", logsTitle, state.name))

	for _, record := range state.logs {
		if u.logsPretty {
			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				fmt.Fprintf(u.logs, "{\"error\":\"%v\"}\n", err)
				continue
			}
			fmt.Fprintf(u.logs, "%s\n", data)
			continue
		}
		fmt.Fprintf(u.logs, "%s\n", formatRecord(record))
	}
	u.logs.ScrollToEnd()
}

func formatRecord(record cliutil.LogRecord) string {
	ts := record.Timestamp.Format(time.TimeOnly)
	switch events.EventType(record.Event) {
	case events.EventTypeStatus:
		return fmt.Sprintf("%s %-8s %s", ts, record.Process, record.State)
	case events.EventTypePort:
		return fmt.Sprintf("%s %-8s app port %s", ts, record.Process, record.Port)
	case events.EventTypeError:
		return fmt.Sprintf("%s %-8s error: %s", ts, record.Process, record.Error)
	case events.EventTypeKeystoreExited, events.EventTypeRuntimeExited:
		return fmt.Sprintf("%s %-8s exited", ts, record.Process)
	default:
		return fmt.Sprintf("%s %-8s %s", ts, record.Process, record.Event)
	}
}
