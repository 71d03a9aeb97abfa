package mailbox

import (
	"context"
	"strings"
	"time"
)

// Body carries an email body together with its declared content type as
// reported by the mailbox, either "text" or "html".
type Body struct {
	ContentType string
	Content     string
}

// IsHTML reports whether the body was declared as markup.
func (b Body) IsHTML() bool {
	return strings.EqualFold(strings.TrimSpace(b.ContentType), "html")
}

// Attachment is one file attached to an email. Content holds the raw,
// already-decoded bytes.
type Attachment struct {
	Filename  string
	MediaType string
	Content   []byte
}

// IsImage reports whether the declared media type is an image. Image
// attachments are never handed to a document decoder.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.MediaType)), "image/")
}

// Email is a single message fetched from the shared mailbox. It is read-only
// for the pipeline; the processed marker lives in the mailbox itself and is
// advanced via Client.MarkProcessed.
type Email struct {
	ID          string
	Subject     string
	Sender      string
	ReceivedAt  time.Time
	Body        Body
	Attachments []Attachment
}

// Client is the mailbox operations the batch pipeline consumes. The external
// marker is the sole source of truth for "already handled": ListUnprocessed
// must only return messages not yet marked, newest first, and MarkProcessed
// must be safe to repeat.
type Client interface {
	// ListUnprocessed returns up to max unprocessed emails ordered by receipt
	// time descending.
	ListUnprocessed(ctx context.Context, max int) ([]Email, error)
	// MarkProcessed flips the persistent processed marker for one email.
	MarkProcessed(ctx context.Context, id string) error
}
