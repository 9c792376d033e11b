package delta

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equiscan/internal/domain"
)

func TestEngine_FirstApplyEmitsFullSnapshot(t *testing.T) {
	e := NewEngine(nil, zerolog.Nop())
	rows := []domain.EnrichedTicker{{Symbol: "AAPL"}, {Symbol: "MSFT"}}

	batch, err := e.Apply(context.Background(), domain.CategoryWinners, rows, time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(1), batch.Sequence)
	require.Len(t, batch.Records, 2)
	for i, r := range batch.Records {
		assert.Equal(t, ActionSnapshot, r.Action)
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestEngine_SecondApplyDiffsAgainstFirst(t *testing.T) {
	e := NewEngine(nil, zerolog.Nop())
	ctx := context.Background()

	first := []domain.EnrichedTicker{{Symbol: "AAPL"}, {Symbol: "MSFT"}}
	_, err := e.Apply(ctx, domain.CategoryWinners, first, time.Now())
	require.NoError(t, err)

	second := []domain.EnrichedTicker{{Symbol: "MSFT"}, {Symbol: "TSLA"}}
	batch, err := e.Apply(ctx, domain.CategoryWinners, second, time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(2), batch.Sequence)

	var actions []Action
	for _, r := range batch.Records {
		actions = append(actions, r.Action)
	}
	assert.Contains(t, actions, ActionRemove)
	assert.Contains(t, actions, ActionAdd)
}

func TestEngine_SequenceIsPerCategory(t *testing.T) {
	e := NewEngine(nil, zerolog.Nop())
	ctx := context.Background()
	rows := []domain.EnrichedTicker{{Symbol: "AAPL"}}

	batchA, err := e.Apply(ctx, domain.CategoryWinners, rows, time.Now())
	require.NoError(t, err)
	batchB, err := e.Apply(ctx, domain.CategoryLosers, rows, time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(1), batchA.Sequence)
	assert.Equal(t, int64(1), batchB.Sequence)

	batchA2, err := e.Apply(ctx, domain.CategoryWinners, rows, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), batchA2.Sequence)
}

func TestEngine_NilBusIsNoOp(t *testing.T) {
	e := NewEngine(nil, zerolog.Nop())
	rows := []domain.EnrichedTicker{{Symbol: "AAPL"}}

	batch, err := e.Apply(context.Background(), domain.CategoryWinners, rows, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, batch.Records)
}

func TestEngine_ResetClearsPreviousAndSequence(t *testing.T) {
	e := NewEngine(nil, zerolog.Nop())
	ctx := context.Background()
	rows := []domain.EnrichedTicker{{Symbol: "AAPL"}}

	_, err := e.Apply(ctx, domain.CategoryWinners, rows, time.Now())
	require.NoError(t, err)

	e.Reset()

	batch, err := e.Apply(ctx, domain.CategoryWinners, rows, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), batch.Sequence)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, ActionSnapshot, batch.Records[0].Action)
}
