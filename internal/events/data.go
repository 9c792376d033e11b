package events

// EventData is implemented by typed payloads so callers can build an
// Event's Data map from a concrete struct instead of hand-assembling
// map[string]interface{} literals at every call site.
type EventData interface {
	// ToMap converts the payload to the generic map carried on Event.
	ToMap() map[string]interface{}
}

// CategoryUpdatedData describes one category's delta batch being
// published (spec §4.7).
type CategoryUpdatedData struct {
	Category  string
	Sequence  int64
	AddCount  int
	RemoveCount int
	RerankCount int
	UpdateCount int
}

func (d CategoryUpdatedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"category":     d.Category,
		"sequence":     d.Sequence,
		"add_count":    d.AddCount,
		"remove_count": d.RemoveCount,
		"rerank_count": d.RerankCount,
		"update_count": d.UpdateCount,
	}
}

// SessionChangedData describes a market session transition (spec §4.8).
type SessionChangedData struct {
	Symbol    string
	From      string
	To        string
	TradeDate string
}

func (d SessionChangedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"symbol":     d.Symbol,
		"from":       d.From,
		"to":         d.To,
		"trade_date": d.TradeDate,
	}
}

// VendorConnectionData describes a WebSocket/HTTP connectivity change to
// the upstream vendor feed.
type VendorConnectionData struct {
	Component string
	Reason    string
	Attempt   int
}

func (d VendorConnectionData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"component": d.Component,
		"reason":    d.Reason,
		"attempt":   d.Attempt,
	}
}

// AnomalyDetectedData describes a single trade-count anomaly (spec §4.3).
type AnomalyDetectedData struct {
	Symbol  string
	ZScore  float64
	Size    float64
	Mean    float64
	StdDev  float64
}

func (d AnomalyDetectedData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"symbol":  d.Symbol,
		"z_score": d.ZScore,
		"size":    d.Size,
		"mean":    d.Mean,
		"std_dev": d.StdDev,
	}
}

// MaintenanceTaskData describes one task's lifecycle transition within a
// nightly maintenance run (spec §4.9).
type MaintenanceTaskData struct {
	RunID     string
	TaskName  string
	Error     string
	Duration  float64
}

func (d MaintenanceTaskData) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"run_id":   d.RunID,
		"task":     d.TaskName,
		"duration": d.Duration,
	}
	if d.Error != "" {
		m["error"] = d.Error
	}
	return m
}
