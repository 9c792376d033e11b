// Package formulas holds small, pure numerical helpers shared by the
// analytics and maintenance packages.
package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateATR computes the Average True Range over the given period from
// daily high/low/close series (oldest first). Returns nil if there isn't
// enough history for a stable reading.
//
// Args:
//
//	highs, lows, closes: daily bar series, oldest first, equal length
//	period: ATR lookback (14 per the nightly maintenance default)
func CalculateATR(highs, lows, closes []float64, period int) *float64 {
	if len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, period)
	if len(atr) == 0 || isNaN(atr[len(atr)-1]) {
		return nil
	}

	result := atr[len(atr)-1]
	return &result
}

// CalculateATRPercent expresses ATR as a percentage of the last close.
func CalculateATRPercent(atr *float64, lastClose float64) *float64 {
	if atr == nil || lastClose <= 0 {
		return nil
	}
	pct := (*atr / lastClose) * 100
	return &pct
}

func isNaN(f float64) bool {
	return f != f
}
