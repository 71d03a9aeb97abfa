package app

import "time"

// Config holds runtime configuration for the application.
type Config struct {
	// MailboxBackend selects the mailbox implementation: "graph" for a
	// Microsoft 365 shared mailbox or "imap" for a plain IMAP server.
	MailboxBackend string

	// Graph backend
	TenantID          string
	ClientID          string
	ClientSecret      string
	SharedMailbox     string
	AnchorMailbox     string
	ProcessedCategory string

	// IMAP backend
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPFolder   string

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string
	// OracleRPM caps extraction calls per minute. Zero disables the limiter.
	OracleRPM int

	// Batch behavior
	MaxPerBatch     int
	ExcludedSenders []string
	// CleanHTML controls body normalization for markup bodies. Nil means the
	// default (on); a flag, config file or env value sets it, in that
	// precedence.
	CleanHTML    *bool
	PollInterval time.Duration
	RunOnce      bool

	// Output
	ReportPath    string // JSON report path; "-" or empty writes to stdout
	ReportPDFPath string // optional PDF summary

	Verbose bool
}
