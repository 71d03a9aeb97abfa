package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGraphListUnprocessed(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		gotQuery = r.URL.Query()
		resp := map[string]any{
			"value": []map[string]any{
				{
					"id":               "AAMkAD-1",
					"subject":          "Offer: pork loin",
					"receivedDateTime": "2026-08-30T09:15:00Z",
					"from": map[string]any{
						"emailAddress": map[string]any{"address": "seller@example.com"},
					},
					"body": map[string]any{
						"contentType": "html",
						"content":     "<p>selling</p>",
					},
					"attachments": []map[string]any{
						{
							"name":         "offer.pdf",
							"contentType":  "application/pdf",
							"contentBytes": base64.StdEncoding.EncodeToString([]byte("%PDF-fake")),
						},
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Error(err)
		}
	}))
	defer srv.Close()

	g := &Graph{
		Mailbox:           "trades@example.com",
		AnchorMailbox:     "ops@example.com",
		ProcessedCategory: "Processed",
		BaseURL:           srv.URL,
		HTTPClient:        srv.Client(),
	}
	emails, err := g.ListUnprocessed(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(emails) != 1 {
		t.Fatalf("emails = %d", len(emails))
	}
	e := emails[0]
	if e.ID != "AAMkAD-1" || e.Sender != "seller@example.com" {
		t.Fatalf("email = %+v", e)
	}
	if !e.Body.IsHTML() {
		t.Error("expected html body")
	}
	if len(e.Attachments) != 1 || string(e.Attachments[0].Content) != "%PDF-fake" {
		t.Fatalf("attachments = %+v", e.Attachments)
	}
	if got := gotQuery["$top"]; len(got) != 1 || got[0] != "3" {
		t.Errorf("$top = %v", got)
	}
	if got := gotQuery["$orderby"]; len(got) != 1 || got[0] != "receivedDateTime desc" {
		t.Errorf("$orderby = %v", got)
	}
	if got := gotQuery["$filter"]; len(got) != 1 || got[0] != "not(categories/any(c:c eq 'Processed'))" {
		t.Errorf("$filter = %v", got)
	}
}

func TestGraphListUnprocessed_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := &Graph{Mailbox: "trades@example.com", BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := g.ListUnprocessed(context.Background(), 1); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestGraphMarkProcessed(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := &Graph{Mailbox: "trades@example.com", BaseURL: srv.URL, HTTPClient: srv.Client()}
	if err := g.MarkProcessed(context.Background(), "AAMkAD-1"); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s", gotMethod)
	}
	if gotPath != "/users/trades@example.com/messages/AAMkAD-1" {
		t.Errorf("path = %s", gotPath)
	}
	var payload struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Categories) != 1 || payload.Categories[0] != "Processed" {
		t.Errorf("categories = %v", payload.Categories)
	}
}

func TestAttachmentIsImage(t *testing.T) {
	cases := []struct {
		mediaType string
		want      bool
	}{
		{"image/png", true},
		{"IMAGE/JPEG", true},
		{" image/gif", true},
		{"application/pdf", false},
		{"text/plain", false},
	}
	for _, tc := range cases {
		a := Attachment{MediaType: tc.mediaType}
		if got := a.IsImage(); got != tc.want {
			t.Errorf("IsImage(%q) = %v, want %v", tc.mediaType, got, tc.want)
		}
	}
}
