package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	busx "github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/events"
)

// ErrAuthFailed marks a vendor authentication rejection, the fatal leg
// of the state machine (spec §8: "auth failure → CLOSED (fatal)"),
// distinct from a transport failure which is retryable.
var ErrAuthFailed = errors.New("marketdata: websocket authentication failed")

// wrapAuthFailure wraps a vendor auth rejection so callers can detect
// it with errors.Is(err, ErrAuthFailed), while keeping the vendor's own
// error text for logging.
func wrapAuthFailure(err error) error {
	return fmt.Errorf("marketdata: authenticate: %w: %v", ErrAuthFailed, err)
}

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 2 * time.Second
	maxReconnectDelay    = 30 * time.Second
	maxReconnectAttempts = 10
)

// Stream names the WebSocket Ingestor demultiplexes vendor frames into
// (spec §4.2).
const (
	StreamTrades     = "realtime.trades"
	StreamQuotes     = "realtime.quotes"
	StreamAggregates = "realtime.aggregates"
	StreamMinutes    = "realtime.minutes"

	// CommandStream carries subscribe/unsubscribe commands written by
	// the Subscription Reconciler.
	CommandStream = "realtime.commands"

	streamMaxLen = 100_000
)

// VendorEvent is one demultiplexed inbound frame, tagged by vendor event
// type ("T" trade, "Q" quote, "A" per-second aggregate, status).
type VendorEvent struct {
	Type string          `json:"ev"`
	Data json.RawMessage `json:"-"`
}

// Command is a subscribe/unsubscribe instruction read from
// CommandStream.
type Command struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Symbol string `json:"symbol"`
}

// WebSocketIngestor maintains one authenticated duplex connection to
// the vendor and fans trades/quotes/aggregates into typed Bus streams.
// Adapted from the teacher's MarketStatusWebSocket reconnect/backoff
// state machine, generalised from a single markets-status channel to
// four typed demultiplexed streams plus a live subscription set.
type WebSocketIngestor struct {
	url    string
	apiKey string

	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	bus      *busx.Bus
	eventBus *events.Bus
	log      zerolog.Logger

	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	// closed marks the terminal CLOSED state (spec §8): either the
	// vendor rejected authentication, or transport reconnects were
	// exhausted. Once set, reconnectLoop no longer runs.
	closed    bool
	closedErr error

	subscribed map[string]bool
	subMu      sync.RWMutex
}

// NewWebSocketIngestor builds an ingestor targeting url, authenticating
// with apiKey on every (re)connect.
func NewWebSocketIngestor(url, apiKey string, b *busx.Bus, eventBus *events.Bus, log zerolog.Logger) *WebSocketIngestor {
	return &WebSocketIngestor{
		url:        url,
		apiKey:     apiKey,
		bus:        b,
		eventBus:   eventBus,
		log:        log.With().Str("component", "websocket_ingestor").Logger(),
		stopChan:   make(chan struct{}),
		subscribed: make(map[string]bool),
	}
}

// Start dials the vendor and launches the read and command-consumer
// loops.
func (w *WebSocketIngestor) Start(ctx context.Context) error {
	if err := w.Connect(ctx); err != nil {
		w.log.Warn().Err(err).Msg("initial websocket connection failed, retrying in background")
		go w.reconnectLoop(ctx)
	} else {
		w.mu.RLock()
		connCtx := w.connCtx
		w.mu.RUnlock()
		go w.readMessages(connCtx)
	}

	go w.consumeCommands(ctx)
	return nil
}

// Stop gracefully shuts the ingestor down.
func (w *WebSocketIngestor) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopChan)
	return w.Disconnect()
}

// Connect dials the vendor WebSocket and re-authenticates (spec §8:
// "Re-auth on every reconnect").
func (w *WebSocketIngestor) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, w.url, nil)
	if err != nil {
		return fmt.Errorf("marketdata: dial websocket: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	w.conn = conn
	w.connCtx = connCtx
	w.cancelFunc = connCancel
	w.connected = true

	if err := w.authenticate(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "auth failed")
		w.conn, w.connCtx, w.cancelFunc, w.connected = nil, nil, nil, false
		return wrapAuthFailure(err)
	}

	if err := w.resubscribeAll(connCtx); err != nil {
		w.log.Warn().Err(err).Msg("failed to resubscribe after reconnect")
	}

	return nil
}

// Disconnect tears down the current connection.
func (w *WebSocketIngestor) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}
	if w.cancelFunc != nil {
		w.cancelFunc()
		w.cancelFunc = nil
	}
	err := w.conn.Close(websocket.StatusNormalClosure, "")
	w.conn, w.connCtx, w.connected = nil, nil, false
	if err != nil {
		return fmt.Errorf("marketdata: close websocket: %w", err)
	}
	return nil
}

func (w *WebSocketIngestor) authenticate(ctx context.Context) error {
	msg := map[string]interface{}{"action": "auth", "params": w.apiKey}
	return w.writeJSON(ctx, msg)
}

func (w *WebSocketIngestor) writeJSON(ctx context.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return w.conn.Write(writeCtx, websocket.MessageText, data)
}

func (w *WebSocketIngestor) resubscribeAll(ctx context.Context) error {
	w.subMu.RLock()
	symbols := make([]string, 0, len(w.subscribed))
	for s := range w.subscribed {
		symbols = append(symbols, s)
	}
	w.subMu.RUnlock()

	if len(symbols) == 0 {
		return nil
	}
	return w.writeJSON(ctx, map[string]interface{}{"action": "subscribe", "params": symbols})
}

// Subscribe adds symbol to the live subscription set and sends the
// vendor subscribe frame.
func (w *WebSocketIngestor) Subscribe(ctx context.Context, symbol string) error {
	w.subMu.Lock()
	w.subscribed[symbol] = true
	w.subMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return nil // queued; resubscribeAll sends it once connected
	}
	return w.writeJSON(ctx, map[string]interface{}{"action": "subscribe", "params": symbol})
}

// Unsubscribe removes symbol from the live subscription set.
func (w *WebSocketIngestor) Unsubscribe(ctx context.Context, symbol string) error {
	w.subMu.Lock()
	delete(w.subscribed, symbol)
	w.subMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return nil
	}
	return w.writeJSON(ctx, map[string]interface{}{"action": "unsubscribe", "params": symbol})
}

// consumeCommands reads subscribe/unsubscribe commands from
// CommandStream, written by the Subscription Reconciler, and applies
// them.
func (w *WebSocketIngestor) consumeCommands(ctx context.Context) {
	group, consumer := "websocket-ingestor", "ingestor-1"
	if err := w.bus.EnsureGroup(ctx, CommandStream, group); err != nil {
		w.log.Error().Err(err).Msg("failed to ensure command group")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		default:
		}

		msgs, err := w.bus.ReadGroup(ctx, CommandStream, group, consumer, 50, 2000)
		if err != nil {
			w.log.Warn().Err(err).Msg("command read failed")
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			var cmd Command
			if err := json.Unmarshal(m.Payload, &cmd); err != nil {
				w.log.Warn().Err(err).Msg("malformed command")
				continue
			}
			switch cmd.Action {
			case "subscribe":
				_ = w.Subscribe(ctx, cmd.Symbol)
			case "unsubscribe":
				_ = w.Unsubscribe(ctx, cmd.Symbol)
			}
			_ = w.bus.Ack(ctx, CommandStream, group, m.ID)
		}
	}
}

func (w *WebSocketIngestor) readMessages(ctx context.Context) {
	defer func() {
		w.mu.RLock()
		stopped := w.stopped
		w.mu.RUnlock()
		if !stopped {
			go w.reconnectLoop(ctx)
		}
	}()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				w.log.Info().Msg("websocket closed normally")
			} else if ctx.Err() != nil {
				w.log.Debug().Msg("read cancelled by context")
			} else {
				w.log.Error().Err(err).Msg("unexpected websocket read error")
				if w.eventBus != nil {
					w.eventBus.Emit(events.VendorConnectionLost, "websocket_ingestor", map[string]interface{}{"reason": err.Error()})
				}
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := w.handleFrame(ctx, message); err != nil {
			w.log.Error().Err(err).Msg("failed to handle frame")
		}
	}
}

// handleFrame parses one inbound vendor frame (a JSON array of tagged
// events) and demultiplexes it onto the typed streams, preserving
// vendor delivery order (spec §4.2 "Ordering").
func (w *WebSocketIngestor) handleFrame(ctx context.Context, message []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(message, &raw); err != nil {
		return fmt.Errorf("parse frame array: %w", err)
	}

	for _, entry := range raw {
		var tag struct {
			Ev string `json:"ev"`
		}
		if err := json.Unmarshal(entry, &tag); err != nil {
			continue
		}

		var stream string
		switch tag.Ev {
		case "T":
			stream = StreamTrades
		case "Q":
			stream = StreamQuotes
		case "A":
			stream = StreamAggregates
		case "AM":
			stream = StreamMinutes
		case "status":
			continue
		default:
			continue
		}

		if _, err := w.bus.AddToStream(ctx, stream, entry, streamMaxLen); err != nil {
			w.log.Warn().Err(err).Str("stream", stream).Msg("failed to publish event")
		}
	}
	return nil
}

func (w *WebSocketIngestor) reconnectLoop(ctx context.Context) {
	w.reconnectLoopCtxFrom(ctx, 0)
}

// reconnectLoopFrom runs the reconnect loop starting at startAttempt,
// against a background context, for tests that want to observe the
// give-up path without waiting through real backoff delays.
func (w *WebSocketIngestor) reconnectLoopFrom(startAttempt int) {
	w.reconnectLoopCtxFrom(context.Background(), startAttempt)
}

func (w *WebSocketIngestor) reconnectLoopCtxFrom(ctx context.Context, startAttempt int) {
	w.mu.Lock()
	if w.reconnecting || w.stopped {
		w.mu.Unlock()
		return
	}
	w.reconnecting = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.reconnecting = false
		w.mu.Unlock()
	}()

	attempt := startAttempt
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		if attempt >= maxReconnectAttempts {
			w.giveUp(fmt.Errorf("marketdata: exceeded %d reconnect attempts", maxReconnectAttempts))
			return
		}

		attempt++
		delay := backoff(attempt)

		select {
		case <-time.After(delay):
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}

		if err := w.Connect(ctx); err != nil {
			if errors.Is(err, ErrAuthFailed) {
				w.giveUp(err)
				return
			}
			w.log.Error().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		if w.eventBus != nil {
			w.eventBus.Emit(events.VendorConnectionRestored, "websocket_ingestor", map[string]interface{}{"attempt": attempt})
		}

		w.mu.RLock()
		connCtx := w.connCtx
		w.mu.RUnlock()
		go w.readMessages(connCtx)
		return
	}
}

// giveUp transitions the ingestor to the terminal CLOSED state (spec
// §8): a fatal auth rejection, or transport reconnects exhausted. No
// further reconnect attempts are made; IsConnected and FailedPermanently
// surface the failure to health probes.
func (w *WebSocketIngestor) giveUp(err error) {
	w.mu.Lock()
	w.closed = true
	w.closedErr = err
	w.connected = false
	w.mu.Unlock()

	w.log.Error().Err(err).Msg("websocket ingestor closed permanently")
	if w.eventBus != nil {
		w.eventBus.EmitError("websocket_ingestor", err, map[string]interface{}{"state": "closed"})
	}
}

func backoff(attempt int) time.Duration {
	capped := attempt
	if capped > maxReconnectAttempts {
		capped = maxReconnectAttempts
	}
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(capped-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}

// IsConnected reports the current connection state. It reports false
// once the ingestor has entered the terminal CLOSED state.
func (w *WebSocketIngestor) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// FailedPermanently reports whether the ingestor has given up for good
// (spec §8 CLOSED state: fatal auth rejection, or reconnect attempts
// exhausted), and the error that caused it. Wired into health checks so
// a permanently-failed feed fails readiness rather than silently going
// quiet.
func (w *WebSocketIngestor) FailedPermanently() (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed, w.closedErr
}
