package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is what happened to an entity.
type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventImported EventType = "imported"
)

// Entity names the kind of record an event refers to.
type Entity string

const (
	EntityAccount     Entity = "account"
	EntityTransaction Entity = "transaction"
	EntityTransfer    Entity = "transfer"
	EntityCategory    Entity = "category"
	EntityBudget      Entity = "budget"
	EntityRate        Entity = "rate"
	EntitySettings    Entity = "settings"
)

// LedgerEvent announces a change to the ledger. It carries references only;
// consumers read current state from the database. Year and Month name the
// budgeting period touched by the change, when there is one.
type LedgerEvent struct {
	EventID   string    `json:"event_id"`
	Event     EventType `json:"event"`
	Entity    Entity    `json:"entity"`
	ID        int64     `json:"id"`
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"`
	PrevYear  int       `json:"prev_year,omitempty"`
	PrevMonth int       `json:"prev_month,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps an event with a fresh id and the current time.
func NewLedgerEvent(event EventType, entity Entity, id int64) *LedgerEvent {
	return &LedgerEvent{
		EventID:   uuid.NewString(),
		Event:     event,
		Entity:    entity,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// InPeriod tags the event with a budgeting month.
func (m *LedgerEvent) InPeriod(year, month int) *LedgerEvent {
	m.Year, m.Month = year, month
	return m
}

// MovedFrom records the month the entity left. It is a no-op when the
// month did not change.
func (m *LedgerEvent) MovedFrom(year, month int) *LedgerEvent {
	if year != m.Year || month != m.Month {
		m.PrevYear, m.PrevMonth = year, month
	}
	return m
}

// WithCount records how many rows a bulk change touched.
func (m *LedgerEvent) WithCount(n int) *LedgerEvent {
	m.Count = n
	return m
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and sanity-checks a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event == "" || msg.Entity == "" {
		return nil, fmt.Errorf("ledger event missing event or entity")
	}
	return &msg, nil
}
