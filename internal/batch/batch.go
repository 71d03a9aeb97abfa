// Package batch is the top-level control loop: it fetches a bounded batch of
// unprocessed emails, drives each one through text normalization, attachment
// extraction, the extraction oracle and result normalization, and aggregates
// a per-run report. Failures are contained at the smallest scope that keeps
// the run moving: attachment failures don't fail the email, email failures
// don't fail the batch, only the initial mailbox listing can.
package batch

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MeatBorsa/mailflow/internal/doctext"
	"github.com/MeatBorsa/mailflow/internal/htmltext"
	"github.com/MeatBorsa/mailflow/internal/mailbox"
	"github.com/MeatBorsa/mailflow/internal/normalize"
)

// Analyzer is the extraction-oracle seam consumed by the orchestrator.
type Analyzer interface {
	Analyze(ctx context.Context, subject, combinedText string) (map[string]any, error)
}

// Processor runs one batch at a time, strictly sequentially.
type Processor struct {
	Mailbox  mailbox.Client
	Analyzer Analyzer

	// MaxPerBatch bounds how many unprocessed emails one run handles.
	MaxPerBatch int
	// ExcludedSenders are dropped after fetch, case-insensitive exact match.
	ExcludedSenders []string
	// CleanHTML controls whether markup bodies are normalized before the
	// oracle call. On unless explicitly disabled.
	CleanHTML bool
}

// Run executes one batch and always returns a well-formed report; it never
// propagates an error past this boundary.
func (p *Processor) Run(ctx context.Context) Report {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := log.With().Str("run_id", report.RunID).Logger()

	emails, err := p.Mailbox.ListUnprocessed(ctx, p.MaxPerBatch)
	if err != nil {
		logger.Error().Err(err).Msg("mailbox listing failed")
		report.Error = err.Error()
		report.Summary.ProcessingStatus = StatusFailed
		report.Analyses = []Analysis{}
		return report
	}
	emails = p.filterExcluded(emails, logger)
	report.Analyses = make([]Analysis, 0, len(emails))
	if len(emails) == 0 {
		logger.Info().Msg("no emails to process")
		report.Summary.ProcessingStatus = StatusCompleted
		return report
	}
	logger.Info().Int("count", len(emails)).Msg("processing batch")

	for _, email := range emails {
		meta := EmailMetadata{
			Subject:      email.Subject,
			ReceivedDate: email.ReceivedAt.Format(time.RFC3339),
			MessageID:    email.ID,
		}
		emailLog := logger.With().Str("message_id", email.ID).Str("subject", email.Subject).Logger()

		record, procErr := p.processEmail(ctx, email)

		// The external marker advances exactly once per email, success or
		// not, before any counting, so a reporting hiccup never causes a
		// retry of the same email.
		if markErr := p.Mailbox.MarkProcessed(ctx, email.ID); markErr != nil {
			emailLog.Warn().Err(markErr).Msg("failed to mark email processed")
		}

		if procErr != nil {
			emailLog.Error().Err(procErr).Msg("email processing failed")
			report.Analyses = append(report.Analyses, Analysis{Failure: procErr, Metadata: meta})
			report.TotalEmails++
			continue
		}

		report.Analyses = append(report.Analyses, Analysis{Record: record, Metadata: meta})
		report.TotalEmails++
		if hasAction(record) {
			report.TradingEmails++
		}
		if hasCommodity(record) {
			report.MeatRelatedEmails++
		}
		emailLog.Info().Msg("email processed")
	}

	report.Summary = Summary{
		HasTradingInfo:   report.TradingEmails > 0,
		HasMeatProducts:  report.MeatRelatedEmails > 0,
		ProcessingStatus: StatusCompleted,
	}
	return report
}

// processEmail runs the per-email pipeline: body normalization, attachment
// text extraction, the oracle call and result normalization.
func (p *Processor) processEmail(ctx context.Context, email mailbox.Email) (map[string]any, error) {
	bodyText := email.Body.Content
	if p.CleanHTML && email.Body.IsHTML() {
		bodyText = htmltext.Normalize(bodyText)
	}

	attachmentTexts := p.extractAttachments(email)
	combined := bodyText
	if len(attachmentTexts) > 0 {
		combined += "\n\nAttachment Contents:\n" + strings.Join(attachmentTexts, "\n---\n")
	}

	record, err := p.Analyzer.Analyze(ctx, email.Subject, combined)
	if err != nil {
		return nil, err
	}
	normalized, ok := normalize.Value(record).(map[string]any)
	if !ok {
		// Structure-preserving walk cannot change the top-level type; keep
		// the raw record if it somehow did.
		return record, nil
	}
	return normalized, nil
}

// extractAttachments returns the text of every decodable non-image
// attachment. A failing attachment is logged and skipped; the rest proceed.
func (p *Processor) extractAttachments(email mailbox.Email) []string {
	var texts []string
	for _, att := range email.Attachments {
		attLog := log.With().Str("message_id", email.ID).Str("attachment", att.Filename).Logger()
		if att.IsImage() {
			attLog.Debug().Str("media_type", att.MediaType).Msg("skipping image attachment")
			continue
		}
		text, err := doctext.Extract(att.Content, att.MediaType, att.Filename)
		if err != nil {
			attLog.Warn().Err(err).Msg("attachment text extraction failed")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		texts = append(texts, "["+att.Filename+"]:\n"+text)
	}
	return texts
}

func (p *Processor) filterExcluded(emails []mailbox.Email, logger zerolog.Logger) []mailbox.Email {
	if len(p.ExcludedSenders) == 0 {
		return emails
	}
	excluded := make(map[string]struct{}, len(p.ExcludedSenders))
	for _, s := range p.ExcludedSenders {
		excluded[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	// Fresh slice: the listing's backing array belongs to the mailbox client.
	kept := make([]mailbox.Email, 0, len(emails))
	for _, email := range emails {
		if _, skip := excluded[strings.ToLower(strings.TrimSpace(email.Sender))]; skip {
			logger.Info().Str("sender", email.Sender).Msg("skipping excluded sender")
			continue
		}
		kept = append(kept, email)
	}
	return kept
}

// hasAction reports whether the record carries a non-empty action field.
func hasAction(record map[string]any) bool {
	s, ok := record["action"].(string)
	return ok && strings.TrimSpace(s) != ""
}

// hasCommodity reports whether the commodity field is a non-empty string or
// a non-empty list.
func hasCommodity(record map[string]any) bool {
	switch v := record["meat_type"].(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	default:
		return false
	}
}
