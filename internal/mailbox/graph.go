package mailbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope          = "https://graph.microsoft.com/.default"
)

// Graph lists and marks messages in a Microsoft 365 shared mailbox. The
// processed marker is a message category: listing filters on its absence and
// MarkProcessed patches it in, so reprocessing protection survives restarts
// without any local state.
type Graph struct {
	Mailbox           string // shared mailbox address
	AnchorMailbox     string // optional X-AnchorMailbox routing hint
	ProcessedCategory string // category name used as the processed marker
	BaseURL           string // override for tests; defaults to the public Graph endpoint
	HTTPClient        *http.Client
}

// NewGraph builds a Graph client authenticating with the client-credentials
// flow against the given tenant.
func NewGraph(ctx context.Context, tenantID, clientID, clientSecret, sharedMailbox string) *Graph {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		Scopes:       []string{graphScope},
	}
	return &Graph{
		Mailbox:           sharedMailbox,
		ProcessedCategory: "Processed",
		HTTPClient:        cc.Client(ctx),
	}
}

type graphAttachment struct {
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

type graphMessage struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	ReceivedDateTime string `json:"receivedDateTime"`
	From             struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Attachments []graphAttachment `json:"attachments"`
}

type graphListResponse struct {
	Value []graphMessage `json:"value"`
}

// ListUnprocessed fetches up to max inbox messages that do not yet carry the
// processed category, newest first, with attachments expanded inline.
func (g *Graph) ListUnprocessed(ctx context.Context, max int) ([]Email, error) {
	if max <= 0 {
		max = 1
	}
	u, err := url.Parse(g.baseURL() + "/users/" + url.PathEscape(g.Mailbox) + "/mailFolders/inbox/messages")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("$filter", fmt.Sprintf("not(categories/any(c:c eq '%s'))", g.processedCategory()))
	q.Set("$top", fmt.Sprintf("%d", max))
	q.Set("$orderby", "receivedDateTime desc")
	q.Set("$select", "id,subject,from,body,receivedDateTime,hasAttachments,categories")
	q.Set("$expand", "attachments")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	g.setHeaders(req)
	resp, err := g.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("graph list status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var lr graphListResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("graph list decode: %w", err)
	}

	emails := make([]Email, 0, len(lr.Value))
	for _, m := range lr.Value {
		emails = append(emails, g.toEmail(m))
	}
	return emails, nil
}

// MarkProcessed adds the processed category to one message. Repeating the
// patch is harmless, which keeps the marker transition idempotent.
func (g *Graph) MarkProcessed(ctx context.Context, id string) error {
	payload, err := json.Marshal(map[string]any{
		"categories": []string{g.processedCategory()},
	})
	if err != nil {
		return err
	}
	endpoint := g.baseURL() + "/users/" + url.PathEscape(g.Mailbox) + "/messages/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("graph mark processed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph mark processed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (g *Graph) toEmail(m graphMessage) Email {
	received, err := time.Parse(time.RFC3339, m.ReceivedDateTime)
	if err != nil {
		received = time.Time{}
	}
	email := Email{
		ID:         m.ID,
		Subject:    m.Subject,
		Sender:     m.From.EmailAddress.Address,
		ReceivedAt: received,
		Body: Body{
			ContentType: m.Body.ContentType,
			Content:     m.Body.Content,
		},
	}
	for _, a := range m.Attachments {
		content, err := base64.StdEncoding.DecodeString(a.ContentBytes)
		if err != nil {
			log.Warn().Err(err).Str("attachment", a.Name).Msg("attachment content not decodable; skipping")
			continue
		}
		email.Attachments = append(email.Attachments, Attachment{
			Filename:  a.Name,
			MediaType: a.ContentType,
			Content:   content,
		})
	}
	return email
}

func (g *Graph) setHeaders(req *http.Request) {
	if g.AnchorMailbox != "" {
		req.Header.Set("X-AnchorMailbox", g.AnchorMailbox)
	}
}

func (g *Graph) baseURL() string {
	if g.BaseURL != "" {
		return strings.TrimRight(g.BaseURL, "/")
	}
	return defaultGraphBaseURL
}

func (g *Graph) processedCategory() string {
	if g.ProcessedCategory != "" {
		return g.ProcessedCategory
	}
	return "Processed"
}

func (g *Graph) httpClient() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
