// Package events provides an in-process publish/subscribe bus used to
// fan scanner state changes out to the HTTP SSE stream and to internal
// observers (health, maintenance) without coupling them to each other.
package events

import "time"

// EventType identifies the kind of event carried on the Bus.
type EventType string

const (
	// Category and delta lifecycle
	CategoryUpdated   EventType = "CATEGORY_UPDATED"
	DeltaBatchEmitted EventType = "DELTA_BATCH_EMITTED"

	// Session and calendar
	SessionChanged EventType = "SESSION_CHANGED"
	DayRolled      EventType = "DAY_ROLLED"
	HolidayLoaded  EventType = "HOLIDAY_LOADED"

	// Market data pipeline health
	VendorConnectionLost     EventType = "VENDOR_CONNECTION_LOST"
	VendorConnectionRestored EventType = "VENDOR_CONNECTION_RESTORED"
	SubscriptionReconciled   EventType = "SUBSCRIPTION_RECONCILED"

	// Analytics
	AnomalyDetected EventType = "ANOMALY_DETECTED"

	// Maintenance task graph
	MaintenanceTaskStarted   EventType = "MAINTENANCE_TASK_STARTED"
	MaintenanceTaskCompleted EventType = "MAINTENANCE_TASK_COMPLETED"
	MaintenanceTaskFailed    EventType = "MAINTENANCE_TASK_FAILED"
	MaintenanceRunCompleted  EventType = "MAINTENANCE_RUN_COMPLETED"

	// Generic
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event is a single occurrence on the Bus.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}
