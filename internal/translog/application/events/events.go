package events

import "time"

// TransactionsReceived is raised after transaction-log ingestion.
type TransactionsReceived struct {
	EventID    string    `json:"event_id"`
	Units      []string  `json:"units"`
	Received   int       `json:"received"`
	Inserted   int       `json:"inserted"`
	LatestAt   time.Time `json:"latest_at"`
	OccurredAt time.Time `json:"occurred_at"`
}
