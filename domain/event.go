package domain

import "time"

const (
	EventBatchCreated    = "batch_created"
	EventRedeemCreated   = "redeem_request_created"
	EventRedeemCancelled = "redeem_request_cancelled"
	EventBatchFulfilled  = "batch_fulfilled"
	EventPurchase        = "purchase"
	EventNavUpdated      = "nav_updated"
	EventFiatCredited    = "fiat_credited"
	EventFiatDebited     = "fiat_debited"
)

// Event is one row of the outward-facing journal. Payload keys are
// event-specific; big amounts are stored as decimal strings.
type Event struct {
	Kind       string                 `json:"kind"`
	Payload    map[string]interface{} `json:"payload"`
	CreateTime time.Time              `json:"create_time"`
}

func NewEvent(kind string, payload map[string]interface{}) *Event {
	return &Event{
		Kind:       kind,
		Payload:    payload,
		CreateTime: time.Now(),
	}
}
