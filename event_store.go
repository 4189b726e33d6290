package corebank

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants (SPEC_FULL "Event log"). Every mutating
// ledger operation appends one of these after applying its effect,
// generalized from the teacher's account/transaction event types to
// the leg- and EOD-centric operations this system actually performs.
const (
	EventCreateTransaction = "CREATE_TRANSACTION"
	EventPostTransaction = "POST_TRANSACTION"
	EventVerifyTransaction = "VERIFY_TRANSACTION"
	EventReverseTransaction = "REVERSE_TRANSACTION"
	EventSetSystemDate = "SET_SYSTEM_DATE"
	EventRunEODJob = "RUN_EOD_JOB"
	EventBODPromote = "BOD_PROMOTE"
)

// EventStore is the append-only audit log. Unlike the teacher's
// EventProcessor, nothing here replays events to rebuild state: every
// component (legs, balances, GL movements) already persists its own
// source of truth directly, so the log is a read-only audit trail, not
// a projection mechanism. EOD Job 1 and the BOD processor read legs
// from storage, not from this log.
type EventStore struct {
	storage *Storage
}

func NewEventStore(storage *Storage) *EventStore {
	return &EventStore{storage: storage}
}

// Append records one event. userID is whoever's request triggered it;
// validTime is the business date the event pertains to (often
// System_Date, sometimes a leg's tranDate).
func (es *EventStore) Append(eventType string, payload interface{}, validTime time.Time, userID string) (JournalEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return JournalEvent{}, IOErrorf(CodeReportWrite, err, "marshaling %s event payload", eventType)
	}
	event := JournalEvent{
		ID: uuid.New().String(),
		EventType: eventType,
		Payload: data,
		ValidTime: validTime,
		TransactionTime: time.Now(),
		UserID: userID,
	}
	if err := es.storage.AppendEvent(event); err != nil {
		return JournalEvent{}, IOErrorf(CodeReportWrite, err, "appending %s event", eventType)
	}
	return event, nil
}

func (es *EventStore) InRange(from, to time.Time) ([]JournalEvent, error) {
	events, err := es.storage.EventsInRange(from, to)
	if err != nil {
		return nil, IOErrorf(CodeReportWrite, err, "reading event log")
	}
	return events, nil
}

// TransactionCreatedPayload is the CREATE_TRANSACTION event body.
type TransactionCreatedPayload struct {
	Base string `json:"base"`
	Legs []string `json:"legTranIds"`
	Narr string `json:"narration"`
}

type TransactionPostedPayload struct {
	Base string `json:"base"`
}

type TransactionVerifiedPayload struct {
	Base string `json:"base"`
}

type TransactionReversedPayload struct {
	OriginalBase string `json:"originalBase"`
	ReversalBase string `json:"reversalBase"`
	Reason string `json:"reason"`
}

type SystemDateChangedPayload struct {
	NewDate time.Time `json:"newDate"`
	UserID string `json:"userId"`
}

type EODJobRunPayload struct {
	JobName string `json:"jobName"`
	Status string `json:"status"`
	RecordsProcessed int `json:"recordsProcessed"`
}

type BODPromotedPayload struct {
	TranID string `json:"tranId"`
}
