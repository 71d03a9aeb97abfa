package batch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MeatBorsa/mailflow/internal/mailbox"
)

type fakeMailbox struct {
	emails  []mailbox.Email
	listErr error
	marked  []string
	listed  int
}

func (f *fakeMailbox) ListUnprocessed(_ context.Context, max int) ([]mailbox.Email, error) {
	f.listed++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if max > 0 && len(f.emails) > max {
		return f.emails[:max], nil
	}
	return f.emails, nil
}

func (f *fakeMailbox) MarkProcessed(_ context.Context, id string) error {
	f.marked = append(f.marked, id)
	return nil
}

type fakeAnalyzer struct {
	record   map[string]any
	err      error
	calls    int
	lastText string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, combinedText string) (map[string]any, error) {
	f.calls++
	f.lastText = combinedText
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func testEmail(id, sender string) mailbox.Email {
	return mailbox.Email{
		ID:         id,
		Subject:    "Offer " + id,
		Sender:     sender,
		ReceivedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Body:       mailbox.Body{ContentType: "text", Content: "selling pork"},
	}
}

func TestRun_EmptyMailbox(t *testing.T) {
	mb := &fakeMailbox{}
	an := &fakeAnalyzer{}
	p := &Processor{Mailbox: mb, Analyzer: an, MaxPerBatch: 5, CleanHTML: true}

	report := p.Run(context.Background())
	if report.TotalEmails != 0 || report.TradingEmails != 0 || report.MeatRelatedEmails != 0 {
		t.Fatalf("expected zero counts, got %+v", report)
	}
	if len(report.Analyses) != 0 {
		t.Fatalf("expected empty analyses, got %d", len(report.Analyses))
	}
	if report.Summary.ProcessingStatus != StatusCompleted {
		t.Fatalf("status = %q", report.Summary.ProcessingStatus)
	}
	if an.calls != 0 {
		t.Error("oracle must not be called for an empty batch")
	}
	if len(mb.marked) != 0 {
		t.Error("mark endpoint must not be called for an empty batch")
	}
}

func TestRun_ListingFailureFailsBatch(t *testing.T) {
	mb := &fakeMailbox{listErr: errors.New("401 unauthorized")}
	p := &Processor{Mailbox: mb, Analyzer: &fakeAnalyzer{}, MaxPerBatch: 5}

	report := p.Run(context.Background())
	if report.Summary.ProcessingStatus != StatusFailed {
		t.Fatalf("status = %q", report.Summary.ProcessingStatus)
	}
	if report.Error == "" || !strings.Contains(report.Error, "401") {
		t.Fatalf("expected top-level error, got %q", report.Error)
	}
	if report.TotalEmails != 0 || len(report.Analyses) != 0 {
		t.Fatalf("expected empty failed report, got %+v", report)
	}
}

func TestRun_OracleFailureIsContainedAndEmailStillMarked(t *testing.T) {
	mb := &fakeMailbox{emails: []mailbox.Email{testEmail("m1", "anna@example.com")}}
	an := &fakeAnalyzer{err: errors.New("rate limited")}
	p := &Processor{Mailbox: mb, Analyzer: an, MaxPerBatch: 5}

	report := p.Run(context.Background())
	if report.TotalEmails != 1 {
		t.Fatalf("total_emails = %d", report.TotalEmails)
	}
	if len(report.Analyses) != 1 || !report.Analyses[0].Failed() {
		t.Fatalf("expected one error descriptor, got %+v", report.Analyses)
	}
	if report.Analyses[0].Metadata.MessageID != "m1" {
		t.Fatalf("metadata = %+v", report.Analyses[0].Metadata)
	}
	if len(mb.marked) != 1 || mb.marked[0] != "m1" {
		t.Fatalf("email must be marked processed despite failure, marked = %v", mb.marked)
	}
	if report.Summary.ProcessingStatus != StatusCompleted {
		t.Fatalf("a single email failure must not fail the batch, status = %q", report.Summary.ProcessingStatus)
	}
}

func TestRun_OneEmailFailureDoesNotAbortOthers(t *testing.T) {
	mb := &fakeMailbox{emails: []mailbox.Email{
		testEmail("m1", "a@example.com"),
		testEmail("m2", "b@example.com"),
	}}
	calls := 0
	an := analyzerFunc(func(_ context.Context, _, _ string) (map[string]any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return map[string]any{"action": "selling"}, nil
	})
	p := &Processor{Mailbox: mb, Analyzer: an, MaxPerBatch: 5}

	report := p.Run(context.Background())
	if report.TotalEmails != 2 || len(report.Analyses) != 2 {
		t.Fatalf("every email must appear exactly once, got %+v", report)
	}
	if !report.Analyses[0].Failed() || report.Analyses[1].Failed() {
		t.Fatalf("expected first failed, second ok: %+v", report.Analyses)
	}
	if len(mb.marked) != 2 {
		t.Fatalf("both emails must be marked, got %v", mb.marked)
	}
}

type analyzerFunc func(ctx context.Context, subject, text string) (map[string]any, error)

func (f analyzerFunc) Analyze(ctx context.Context, subject, text string) (map[string]any, error) {
	return f(ctx, subject, text)
}

func TestRun_ExcludedSenderNeverAnalyzed(t *testing.T) {
	mb := &fakeMailbox{emails: []mailbox.Email{
		testEmail("m1", "Newsletter@Spam.example"),
		testEmail("m2", "buyer@example.com"),
	}}
	an := &fakeAnalyzer{record: map[string]any{"action": "buying"}}
	p := &Processor{
		Mailbox:         mb,
		Analyzer:        an,
		MaxPerBatch:     5,
		ExcludedSenders: []string{"newsletter@spam.example"},
	}

	report := p.Run(context.Background())
	if report.TotalEmails != 1 || len(report.Analyses) != 1 {
		t.Fatalf("excluded sender must not appear in analyses: %+v", report)
	}
	if report.Analyses[0].Metadata.MessageID != "m2" {
		t.Fatalf("wrong email analyzed: %+v", report.Analyses[0].Metadata)
	}
	if len(mb.marked) != 1 || mb.marked[0] != "m2" {
		t.Fatalf("excluded email must not be marked, marked = %v", mb.marked)
	}
	// The listing's slice belongs to the mailbox client and must survive
	// filtering untouched.
	if mb.emails[0].ID != "m1" || mb.emails[1].ID != "m2" {
		t.Fatalf("mailbox slice mutated by filtering: %v", mb.emails)
	}
}

func TestRun_ImageAttachmentsSkippedOthersAppended(t *testing.T) {
	email := testEmail("m1", "seller@example.com")
	email.Attachments = []mailbox.Attachment{
		{Filename: "logo.png", MediaType: "image/png", Content: []byte{0x89, 0x50, 0x4e, 0x47}},
		{Filename: "prices.csv", MediaType: "text/csv", Content: []byte("product,price\npork,2.10\n")},
		{Filename: "broken.pdf", MediaType: "application/pdf", Content: []byte("not a pdf at all")},
	}
	mb := &fakeMailbox{emails: []mailbox.Email{email}}
	an := &fakeAnalyzer{record: map[string]any{"action": "selling"}}
	p := &Processor{Mailbox: mb, Analyzer: an, MaxPerBatch: 5}

	report := p.Run(context.Background())
	if len(report.Analyses) != 1 || report.Analyses[0].Failed() {
		t.Fatalf("decode failures must not fail the email: %+v", report.Analyses)
	}
	if !strings.Contains(an.lastText, "Attachment Contents:") {
		t.Fatalf("expected attachment section, got %q", an.lastText)
	}
	if !strings.Contains(an.lastText, "[prices.csv]:") || !strings.Contains(an.lastText, "pork,2.10") {
		t.Fatalf("expected csv attachment text, got %q", an.lastText)
	}
	if strings.Contains(an.lastText, "logo.png") {
		t.Fatalf("image attachment leaked into oracle input: %q", an.lastText)
	}
	if strings.Contains(an.lastText, "broken.pdf") {
		t.Fatalf("failed attachment must be skipped, got %q", an.lastText)
	}
}

func TestRun_HTMLBodyNormalizedBeforeOracle(t *testing.T) {
	email := testEmail("m1", "seller@example.com")
	email.Body = mailbox.Body{
		ContentType: "html",
		Content:     `<html><head><style>p{}</style></head><body><p>selling  beef</p><script>x()</script></body></html>`,
	}
	mb := &fakeMailbox{emails: []mailbox.Email{email}}
	an := &fakeAnalyzer{record: map[string]any{"action": "selling"}}
	p := &Processor{Mailbox: mb, Analyzer: an, MaxPerBatch: 5, CleanHTML: true}

	p.Run(context.Background())
	if strings.Contains(an.lastText, "<p>") || strings.Contains(an.lastText, "x()") {
		t.Fatalf("markup leaked into oracle input: %q", an.lastText)
	}
	if !strings.Contains(an.lastText, "selling beef") {
		t.Fatalf("expected normalized body text, got %q", an.lastText)
	}
}

func TestRun_CountsAndNormalization(t *testing.T) {
	mb := &fakeMailbox{emails: []mailbox.Email{testEmail("m1", "seller@example.com")}}
	an := &fakeAnalyzer{record: map[string]any{
		"action":    "selling",
		"meat_type": []any{"Pork  trimmings"},
		"incoterms": "ex works",
	}}
	p := &Processor{Mailbox: mb, Analyzer: an, MaxPerBatch: 5}

	report := p.Run(context.Background())
	if report.TradingEmails != 1 || report.MeatRelatedEmails != 1 {
		t.Fatalf("counts = %d/%d", report.TradingEmails, report.MeatRelatedEmails)
	}
	if !report.Summary.HasTradingInfo || !report.Summary.HasMeatProducts {
		t.Fatalf("summary = %+v", report.Summary)
	}
	record := report.Analyses[0].Record
	meat := record["meat_type"].([]any)
	if meat[0] != "Pork trimmings" {
		t.Fatalf("meat_type not normalized: %v", meat)
	}
	if record["incoterms"] != "EXW" {
		t.Fatalf("incoterms not normalized: %v", record["incoterms"])
	}
}

func TestRun_EmptyActionNotCounted(t *testing.T) {
	mb := &fakeMailbox{emails: []mailbox.Email{testEmail("m1", "x@example.com")}}
	an := &fakeAnalyzer{record: map[string]any{"action": "", "meat_type": ""}}
	p := &Processor{Mailbox: mb, Analyzer: an, MaxPerBatch: 5}

	report := p.Run(context.Background())
	if report.TradingEmails != 0 || report.MeatRelatedEmails != 0 {
		t.Fatalf("counts = %d/%d", report.TradingEmails, report.MeatRelatedEmails)
	}
	if report.Summary.HasTradingInfo || report.Summary.HasMeatProducts {
		t.Fatalf("summary = %+v", report.Summary)
	}
}

func TestAnalysisJSON(t *testing.T) {
	ok := Analysis{
		Record:   map[string]any{"action": "selling"},
		Metadata: EmailMetadata{Subject: "Offer", ReceivedDate: "2026-08-30T12:00:00Z", MessageID: "m1"},
	}
	raw, err := json.Marshal(ok)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["action"] != "selling" {
		t.Fatalf("record fields not flattened: %v", m)
	}
	meta := m["email_metadata"].(map[string]any)
	if meta["message_id"] != "m1" {
		t.Fatalf("metadata missing: %v", m)
	}

	failed := Analysis{
		Failure:  errors.New("oracle down"),
		Metadata: EmailMetadata{MessageID: "m2"},
	}
	raw, err = json.Marshal(failed)
	if err != nil {
		t.Fatal(err)
	}
	var fm map[string]any
	if err := json.Unmarshal(raw, &fm); err != nil {
		t.Fatal(err)
	}
	if fm["error"] != "Failed to process email" || fm["details"] != "oracle down" {
		t.Fatalf("error descriptor = %v", fm)
	}
}
