package batch

import (
	"encoding/json"
	"time"
)

// Processing statuses for a batch run.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// EmailMetadata identifies the email an analysis belongs to.
type EmailMetadata struct {
	Subject      string `json:"subject"`
	ReceivedDate string `json:"received_date"`
	MessageID    string `json:"message_id"`
}

// Analysis is one per-email outcome: either an extraction record or an error
// descriptor, both carrying the email metadata.
type Analysis struct {
	Record   map[string]any
	Failure  error
	Metadata EmailMetadata
}

// Failed reports whether the email ended in an error descriptor.
func (a Analysis) Failed() bool { return a.Failure != nil }

// MarshalJSON flattens the record fields (or the error descriptor) together
// with the email metadata into one object.
func (a Analysis) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Record)+3)
	if a.Failure != nil {
		out["error"] = "Failed to process email"
		out["details"] = a.Failure.Error()
	} else {
		for k, v := range a.Record {
			out[k] = v
		}
	}
	out["email_metadata"] = a.Metadata
	return json.Marshal(out)
}

// Summary is the boolean digest of one batch run.
type Summary struct {
	HasTradingInfo   bool   `json:"has_trading_info"`
	HasMeatProducts  bool   `json:"has_meat_products"`
	ProcessingStatus string `json:"processing_status"`
}

// Report aggregates one batch run. It is created fresh per run and never
// persisted; restart idempotency rests entirely on the mailbox's processed
// marker.
type Report struct {
	RunID             string     `json:"run_id"`
	StartedAt         time.Time  `json:"started_at"`
	TotalEmails       int        `json:"total_emails"`
	TradingEmails     int        `json:"trading_emails"`
	MeatRelatedEmails int        `json:"meat_related_emails"`
	Summary           Summary    `json:"summary"`
	Analyses          []Analysis `json:"analyses"`
	Error             string     `json:"error,omitempty"`
}
