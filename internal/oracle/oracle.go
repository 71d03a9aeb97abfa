// Package oracle calls the external structured-extraction service: a chat
// model that turns a trade email into a JSON trade-offer record.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const systemPrompt = "You are a meat trading analyst. Extract buying/selling information from emails and respond in the specified JSON format."

const userPromptTemplate = `Analyze this email to determine if the sender is buying or selling meat. Process emails that contain meat related information.
Most of the time, the sender is selling, especially if the email contains price information. Leave empty if it cannot be determined.

Important notes:
- If the email is forwarded, process the original email only
- Take the first name, last name, email and company from the original sender
- Process file attachments regardless of forwarding
- If the email contains multiple emails, process only the forwarded email
- Do not process emails that are not about meat trading
- There should be one price per offer or per line

Email Subject: %s
Email Content: %s`

// Error reports a failed extraction call: transport trouble, a rate-limit
// rejection, or a malformed response. It is always local to one email.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle: %s: %v", e.Message, e.Err)
	}
	return "oracle: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Analyzer drives the extraction service. Calls are sequential; Limiter
// additionally spaces them out to stay under the provider's rate limits.
type Analyzer struct {
	Client      Client
	Model       string
	Temperature float32
	Limiter     *rate.Limiter
}

// Analyze sends the subject and combined email text to the model and returns
// the decoded trade-offer record.
func (a *Analyzer) Analyze(ctx context.Context, subject, combinedText string) (map[string]any, error) {
	if a.Client == nil || a.Model == "" {
		return nil, &Error{Message: "analyzer not configured"}
	}
	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return nil, &Error{Message: "rate limit wait", Err: err}
		}
	}

	temperature := a.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	user := fmt.Sprintf(userPromptTemplate, subject, combinedText)
	log.Debug().Str("stage", "oracle").Str("model", a.Model).Int("prompt_len", len(user)).Msg("extraction request")

	resp, err := a.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
			{Role: openai.ChatMessageRoleSystem, Content: "JSON Schema:\n" + SchemaJSON()},
		},
		Temperature: temperature,
		N:           1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &Error{Message: "extraction call failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Message: "no choices in response"}
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, &Error{Message: "response is not valid JSON", Err: err}
	}
	record, ok := decoded.(map[string]any)
	if !ok {
		return nil, &Error{Message: "response is not a JSON object"}
	}
	if err := validateRecord(decoded); err != nil {
		return nil, &Error{Message: "response violates trade-offer schema", Err: err}
	}
	return record, nil
}
