package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/events"
	"github.com/aristath/equiscan/pkg/formulas"
)

func tradeBaselineKey(symbol string, lookbackDays int) string {
	return fmt.Sprintf("trades:baseline:%s:%d", symbol, lookbackDays)
}

// TradeAnomalyDetector computes the Z-score of today's trade count
// against the per-symbol baseline mean/stdev, flagging ANOMALIES
// category membership above the configured threshold (spec §8 "Trade
// Z-score").
type TradeAnomalyDetector struct {
	bus          *bus.Bus
	events       *events.Bus
	lookbackDays int
	threshold    float64
}

// NewTradeAnomalyDetector constructs a detector reading baselines from
// b over the given lookback window, flagging anomalies above threshold.
func NewTradeAnomalyDetector(b *bus.Bus, eventBus *events.Bus, lookbackDays int, threshold float64) *TradeAnomalyDetector {
	return &TradeAnomalyDetector{bus: b, events: eventBus, lookbackDays: lookbackDays, threshold: threshold}
}

// ZScore computes today's trade-count Z-score for symbol, or nil if no
// baseline is cached yet.
func (d *TradeAnomalyDetector) ZScore(ctx context.Context, symbol string, todayTradeCount float64) *float64 {
	var baseline formulas.Baseline
	if err := d.bus.HGetMsgpack(ctx, tradeBaselineKey(symbol, d.lookbackDays), "value", &baseline); err != nil {
		return nil
	}

	z := formulas.ZScore(todayTradeCount, baseline)

	if z >= d.threshold && d.events != nil {
		d.events.Emit(events.AnomalyDetected, "trade_anomaly_detector", events.AnomalyDetectedData{
			Symbol: symbol, ZScore: z, Size: todayTradeCount, Mean: baseline.Mean, StdDev: baseline.StdDev,
		}.ToMap())
	}

	return &z
}

// IsAnomalous reports whether z reaches or exceeds the configured
// threshold.
func (d *TradeAnomalyDetector) IsAnomalous(z float64) bool {
	return z >= d.threshold
}

// SetBaseline mirrors a freshly computed trade-count baseline into the
// Bus, owned exclusively by the nightly calculate_trades_baselines
// maintenance task (spec §9 "shared-resource policy").
func (d *TradeAnomalyDetector) SetBaseline(ctx context.Context, symbol string, baseline formulas.Baseline, ttl time.Duration) error {
	return d.bus.HSetMsgpack(ctx, tradeBaselineKey(symbol, d.lookbackDays), "value", baseline, ttl)
}
