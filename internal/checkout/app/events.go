package app

import "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"

type EventType string

const (
	EventStateChanged       EventType = "stateChanged"
	EventFulfillmentUpdated EventType = "fulfillmentUpdated"
	EventFulfillmentDone    EventType = "fulfillmentDone"
	EventPollFailed         EventType = "pollFailed"
)

type Event struct {
	Type     EventType
	State    domain.State
	Previous domain.State
	// Process is the snapshot the event was derived from, if any.
	Process *domain.Process
	Err     error
}
