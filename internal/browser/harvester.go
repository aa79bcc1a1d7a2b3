// internal/browser/harvester.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scout-cli/api/schemas"
)

// requestState tracks one network request from dispatch to completion.
type requestState struct {
	request  *network.Request
	response *network.Response
	startTS  *cdp.TimeSinceEpoch
	endTS    *cdp.MonotonicTime
}

// Harvester listens to CDP events on the session's tab and accumulates the
// console and network streams the bug heuristics and the audit bundle feed
// on. Events arrive on the CDP dispatch goroutine, so every mutation is
// behind the lock.
type Harvester struct {
	logger *zap.Logger

	sessionCtx     context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	lock        sync.RWMutex
	pending     map[network.RequestID]*requestState
	inflight    map[network.RequestID]bool
	requests    []schemas.NetworkRequest
	consoleLogs []schemas.ConsoleLog

	isStarted bool
}

// NewHarvester creates a harvester bound to one tab's context.
func NewHarvester(sessionCtx context.Context, logger *zap.Logger) *Harvester {
	return &Harvester{
		sessionCtx:  sessionCtx,
		logger:      logger.Named("harvester"),
		pending:     make(map[network.RequestID]*requestState),
		inflight:    make(map[network.RequestID]bool),
		requests:    make([]schemas.NetworkRequest, 0),
		consoleLogs: make([]schemas.ConsoleLog, 0),
	}
}

// Start enables the CDP domains and begins listening.
func (h *Harvester) Start(ctx context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.isStarted {
		return nil
	}

	h.listenerCtx, h.cancelListener = context.WithCancel(h.sessionCtx)
	go h.listen()

	if err := chromedp.Run(ctx,
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
	); err != nil {
		h.cancelListener()
		return err
	}

	h.isStarted = true
	h.logger.Debug("Harvester started and listening for events.")
	return nil
}

// Stop halts event collection. Already collected records stay readable.
func (h *Harvester) Stop() {
	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.isStarted {
		return
	}
	if h.cancelListener != nil {
		h.cancelListener()
		h.cancelListener = nil
	}
	h.isStarted = false
	h.logger.Debug("Harvester stopped.")
}

func (h *Harvester) listen() {
	chromedp.ListenTarget(h.listenerCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			h.handleRequestWillBeSent(e)
		case *network.EventResponseReceived:
			h.handleResponseReceived(e)
		case *network.EventLoadingFinished:
			h.handleLoadingFinished(e)
		case *network.EventLoadingFailed:
			h.handleLoadingFailed(e)

		case *runtime.EventConsoleAPICalled:
			h.handleConsoleAPICalled(e)
		case *log.EventEntryAdded:
			h.handleLogEntryAdded(e)
		case *runtime.EventExceptionThrown:
			h.handleExceptionThrown(e)
		}
	})
}

// WaitNetworkIdle polls until no request has been in flight for quietPeriod.
func (h *Harvester) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	ticker := time.NewTicker(quietPeriod / 2)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("WaitNetworkIdle aborted due to context cancellation.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			h.lock.RLock()
			inflightCount := len(h.inflight)
			h.lock.RUnlock()

			if inflightCount > 0 {
				lastActivity = time.Now()
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}

// ConsoleLogs returns a copy of every console record collected so far, in
// arrival order.
func (h *Harvester) ConsoleLogs() []schemas.ConsoleLog {
	h.lock.RLock()
	defer h.lock.RUnlock()
	logs := make([]schemas.ConsoleLog, len(h.consoleLogs))
	copy(logs, h.consoleLogs)
	return logs
}

// NetworkRequests returns a copy of every completed request record so far, in
// completion order.
func (h *Harvester) NetworkRequests() []schemas.NetworkRequest {
	h.lock.RLock()
	defer h.lock.RUnlock()
	reqs := make([]schemas.NetworkRequest, len(h.requests))
	copy(reqs, h.requests)
	return reqs
}

// -- Network event handlers --

func (h *Harvester) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.inflight[e.RequestID] = true

	// A redirect reuses the request ID; the previous leg is complete.
	if e.RedirectResponse != nil {
		if prev, ok := h.pending[e.RequestID]; ok {
			prev.response = e.RedirectResponse
			h.finalizeLocked(e.RequestID, prev, false, "")
		}
	}

	h.pending[e.RequestID] = &requestState{
		request: e.Request,
		startTS: e.WallTime,
	}
}

func (h *Harvester) handleResponseReceived(e *network.EventResponseReceived) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if state, ok := h.pending[e.RequestID]; ok {
		state.response = e.Response
	}
}

func (h *Harvester) handleLoadingFinished(e *network.EventLoadingFinished) {
	h.lock.Lock()
	defer h.lock.Unlock()

	delete(h.inflight, e.RequestID)
	if state, ok := h.pending[e.RequestID]; ok {
		state.endTS = e.Timestamp
		h.finalizeLocked(e.RequestID, state, false, "")
	}
}

func (h *Harvester) handleLoadingFailed(e *network.EventLoadingFailed) {
	h.lock.Lock()
	defer h.lock.Unlock()

	delete(h.inflight, e.RequestID)
	if state, ok := h.pending[e.RequestID]; ok {
		state.endTS = e.Timestamp
		h.finalizeLocked(e.RequestID, state, true, e.ErrorText)
	}
}

// finalizeLocked converts a completed request state into a durable record.
// Callers must hold the write lock.
func (h *Harvester) finalizeLocked(id network.RequestID, state *requestState, failed bool, failureReason string) {
	if state.request == nil {
		delete(h.pending, id)
		return
	}

	record := schemas.NetworkRequest{
		Method:        state.request.Method,
		URL:           state.request.URL,
		Failed:        failed,
		FailureReason: failureReason,
	}
	if state.startTS != nil {
		record.Timestamp = state.startTS.Time()
		if state.endTS != nil {
			record.DurationMs = state.endTS.Time().Sub(state.startTS.Time()).Seconds() * 1000
		}
	}
	if state.response != nil {
		record.Status = int(state.response.Status)
		record.ResourceType = state.response.MimeType
	}

	h.requests = append(h.requests, record)
	delete(h.pending, id)
}

// -- Console and runtime handlers --

func (h *Harvester) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var textBuilder strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			textBuilder.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			textBuilder.WriteString(arg.Description)
		} else {
			textBuilder.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	h.appendConsole(schemas.ConsoleLog{
		Timestamp: e.Timestamp.Time(),
		Level:     string(e.Type),
		Text:      textBuilder.String(),
	})
}

func (h *Harvester) handleLogEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	h.appendConsole(schemas.ConsoleLog{
		Timestamp: e.Entry.Timestamp.Time(),
		Level:     string(e.Entry.Level),
		Text:      e.Entry.Text,
		URL:       e.Entry.URL,
	})
}

func (h *Harvester) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	// The exception description carries the message and stack trace.
	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}

	h.appendConsole(schemas.ConsoleLog{
		Timestamp: e.Timestamp.Time(),
		Level:     "error",
		Text:      text,
		URL:       e.ExceptionDetails.URL,
	})
}

func (h *Harvester) appendConsole(entry schemas.ConsoleLog) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.consoleLogs = append(h.consoleLogs, entry)
}
