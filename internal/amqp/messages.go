package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names the ledger change carried by an event.
type EventKind string

const (
	EventDeposited  EventKind = "deposited"
	EventRemoved    EventKind = "removed"
	EventRepaid     EventKind = "repaid"
	EventWithdrawal EventKind = "withdrawal"
	EventCashOut    EventKind = "cash_out"
	EventImported   EventKind = "imported"
)

// LedgerEvent is published after a ledger change has been persisted.
// Consumers treat it as a notification; the store stays authoritative.
type LedgerEvent struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	ChallengeID string    `json:"challengeId"`
	Value       float64   `json:"value"`
	Slots       []int64   `json:"slots,omitempty"`
	NetBalance  int64     `json:"netBalance"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, challengeID string, value float64, net int64) LedgerEvent {
	return LedgerEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		ChallengeID: challengeID,
		Value:       value,
		NetBalance:  net,
		Timestamp:   time.Now().UTC(),
	}
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and minimally validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Kind == "" || e.ChallengeID == "" {
		return nil, fmt.Errorf("ledger event missing kind or challenge id")
	}
	return &e, nil
}
