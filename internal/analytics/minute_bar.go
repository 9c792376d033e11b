package analytics

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/equiscan/internal/bus"
)

const (
	minuteBatchSize  = 15_000
	minuteBlockMillis = 2000
)

// MinuteBar is one closed 1-minute OHLCV bar.
type MinuteBar struct {
	Symbol    string    `json:"symbol"`
	Minute    time.Time `json:"minute"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// MinuteBarEngine reads the vendor minute stream in large batches for
// burst tolerance, closes bars, and exposes the most-recently-closed
// bar per symbol plus processing-latency telemetry (spec §4.3).
type MinuteBarEngine struct {
	bus   *bus.Bus
	log   zerolog.Logger

	mu    sync.RWMutex
	bars  map[string]MinuteBar

	latencyMu sync.Mutex
	latencies []float64 // seconds, most recent batches only

	group, consumer, stream string
}

// NewMinuteBarEngine constructs an engine consuming stream via the
// given consumer-group/consumer identity.
func NewMinuteBarEngine(b *bus.Bus, stream, group, consumer string, log zerolog.Logger) *MinuteBarEngine {
	return &MinuteBarEngine{
		bus:      b,
		stream:   stream,
		group:    group,
		consumer: consumer,
		bars:     make(map[string]MinuteBar),
		log:      log.With().Str("component", "minute_bar_engine").Logger(),
	}
}

// Run consumes until ctx is cancelled.
func (e *MinuteBarEngine) Run(ctx context.Context) error {
	if err := e.bus.EnsureGroup(ctx, e.stream, e.group); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		start := time.Now()
		msgs, err := e.bus.ReadGroup(ctx, e.stream, e.group, e.consumer, minuteBatchSize, minuteBlockMillis)
		if err != nil {
			e.log.Warn().Err(err).Msg("minute stream read failed")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			e.applyMessage(m.Payload)
			ids = append(ids, m.ID)
		}
		_ = e.bus.Ack(ctx, e.stream, e.group, ids...)

		e.recordLatency(time.Since(start).Seconds())
	}
}

func (e *MinuteBarEngine) applyMessage(payload []byte) {
	var raw struct {
		Symbol string  `json:"sym"`
		Start  int64   `json:"s"` // vendor epoch millis, minute start
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil || raw.Symbol == "" {
		return
	}

	bar := MinuteBar{
		Symbol: raw.Symbol,
		Minute: time.UnixMilli(raw.Start),
		Open:   raw.Open, High: raw.High, Low: raw.Low, Close: raw.Close, Volume: raw.Volume,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Later minute bar for the same (symbol, minute) supersedes the
	// earlier one (spec §4.2 "Ordering").
	if existing, ok := e.bars[raw.Symbol]; ok && existing.Minute.After(bar.Minute) {
		return
	}
	e.bars[raw.Symbol] = bar
}

// LastClosedBar returns the most recently closed bar for symbol.
func (e *MinuteBarEngine) LastClosedBar(symbol string) (MinuteBar, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.bars[symbol]
	return b, ok
}

func (e *MinuteBarEngine) recordLatency(seconds float64) {
	e.latencyMu.Lock()
	defer e.latencyMu.Unlock()
	e.latencies = append(e.latencies, seconds)
	if len(e.latencies) > 1000 {
		e.latencies = e.latencies[len(e.latencies)-1000:]
	}
}

// P95BatchSeconds returns the p95 batch-processing latency over the
// retained window, or 0 if no batches have been processed yet.
func (e *MinuteBarEngine) P95BatchSeconds() float64 {
	e.latencyMu.Lock()
	defer e.latencyMu.Unlock()
	if len(e.latencies) == 0 {
		return 0
	}
	sorted := append([]float64(nil), e.latencies...)
	sort.Float64s(sorted)
	return stat.Quantile(0.95, stat.Empirical, sorted, nil)
}

// Reset clears all per-symbol bar state (day-changed event).
func (e *MinuteBarEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bars = make(map[string]MinuteBar)
}
