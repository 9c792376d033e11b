package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(zerolog.Nop())
}

func TestBus_EmitDispatchesToSubscriber(t *testing.T) {
	b := newTestBus()

	var mu sync.Mutex
	var received *Event

	b.Subscribe(SessionChanged, func(e *Event) {
		mu.Lock()
		defer mu.Unlock()
		received = e
	})

	data := SessionChangedData{Symbol: "AAPL", From: "PRE_MARKET", To: "MARKET_OPEN", TradeDate: "2026-08-03"}
	b.Emit(SessionChanged, "session", data.ToMap())

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	assert.Equal(t, SessionChanged, received.Type)
	assert.Equal(t, "session", received.Module)
	assert.Equal(t, "AAPL", received.Data["symbol"])
}

func TestBus_EmitOnlyNotifiesMatchingType(t *testing.T) {
	b := newTestBus()

	calls := 0
	b.Subscribe(AnomalyDetected, func(e *Event) { calls++ })

	b.Emit(SessionChanged, "session", nil)
	assert.Equal(t, 0, calls)

	b.Emit(AnomalyDetected, "analytics", nil)
	assert.Equal(t, 1, calls)
}

func TestBus_MultipleSubscribersAllCalled(t *testing.T) {
	b := newTestBus()

	var calls []int
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		idx := i
		b.Subscribe(DeltaBatchEmitted, func(e *Event) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, idx)
		})
	}

	b.Emit(DeltaBatchEmitted, "delta", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{0, 1, 2}, calls)
}

func TestBus_EmitError(t *testing.T) {
	b := newTestBus()

	var received *Event
	b.Subscribe(ErrorOccurred, func(e *Event) { received = e })

	b.EmitError("marketdata", errors.New("websocket closed"), map[string]interface{}{"symbol": "TSLA"})

	require.NotNil(t, received)
	assert.Equal(t, "websocket closed", received.Data["error"])
}
