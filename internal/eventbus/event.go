// Package eventbus implements the scan-wide publish-subscribe event bus
// and progress aggregator of spec §4.12.
package eventbus

import "time"

// Category groups an Event's Type into one of the five families spec §4.12
// defines.
type Category uint8

const (
	CategoryLifecycle Category = iota
	CategoryDiscovery
	CategoryDetection
	CategoryProgress
	CategoryDiagnostic
)

// Type enumerates the concrete event kinds within each Category.
type Type string

const (
	TypeStarted   Type = "started"
	TypeCompleted Type = "completed"
	TypeCancelled Type = "cancelled"
	TypePaused    Type = "paused"
	TypeResumed   Type = "resumed"

	TypeHostDiscovered Type = "host_discovered"
	TypePortDiscovered Type = "port_discovered"

	TypeServiceDetected     Type = "service_detected"
	TypeOSDetected          Type = "os_detected"
	TypeBannerCaptured      Type = "banner_captured"
	TypeCertificateObserved Type = "certificate_observed"

	TypeProgressUpdate Type = "progress_update"
	TypeStageChanged   Type = "stage_changed"

	TypeMetric        Type = "metric"
	TypeWarning       Type = "warning"
	TypeRateLimit     Type = "rate_limit"
	TypeRetry         Type = "retry"
	TypeDroppedEvents Type = "dropped_events"
)

// categoryOf maps each Type to its Category for filter matching.
var categoryOf = map[Type]Category{
	TypeStarted:   CategoryLifecycle,
	TypeCompleted: CategoryLifecycle,
	TypeCancelled: CategoryLifecycle,
	TypePaused:    CategoryLifecycle,
	TypeResumed:   CategoryLifecycle,

	TypeHostDiscovered: CategoryDiscovery,
	TypePortDiscovered: CategoryDiscovery,

	TypeServiceDetected:     CategoryDetection,
	TypeOSDetected:          CategoryDetection,
	TypeBannerCaptured:      CategoryDetection,
	TypeCertificateObserved: CategoryDetection,

	TypeProgressUpdate: CategoryProgress,
	TypeStageChanged:   CategoryProgress,

	TypeMetric:        CategoryDiagnostic,
	TypeWarning:        CategoryDiagnostic,
	TypeRateLimit:      CategoryDiagnostic,
	TypeRetry:          CategoryDiagnostic,
	TypeDroppedEvents:  CategoryDiagnostic,
}

// Event is a single published item. Payload is typed per Type by
// convention (e.g. *ProgressPayload for TypeProgressUpdate); consumers
// type-assert after checking Type.
type Event struct {
	Type      Type
	Category  Category
	ScanID    string
	Timestamp time.Time
	Payload   any
}

// NewEvent builds an Event, resolving Category from Type.
func NewEvent(t Type, scanID string, payload any, now time.Time) Event {
	return Event{
		Type:      t,
		Category:  categoryOf[t],
		ScanID:    scanID,
		Timestamp: now,
		Payload:   payload,
	}
}

// DroppedEventsPayload is the payload shape for TypeDroppedEvents events.
// Bus.Publish does not publish such events itself: subscriber queue
// overflow is counted per subscriber (Subscription.Dropped) and bus-wide
// (Bus.TotalDropped), and nothing in this package emits a DroppedEvents
// event from those counts.
type DroppedEventsPayload struct {
	Count int
}
