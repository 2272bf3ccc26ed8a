package events

import (
	"encoding/json"
	"time"
)

// Resources that emit events.
const (
	ResourceTransaction = "transaction"
	ResourceBudget      = "budget"
	ResourceCategory    = "category"
)

// Actions performed on a resource.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event records a mutation the user made through the UI. It carries ids
// only; consumers read the current state from the budget API.
type Event struct {
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	ID        int64     `json:"id,omitempty"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(resource, action string, id int64) *Event {
	return &Event{
		Resource:  resource,
		Action:    action,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// RoutingKey is the topic the event is published under, e.g.
// "transaction.created".
func (e *Event) RoutingKey() string {
	return e.Resource + "." + e.Action
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
