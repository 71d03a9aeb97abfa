package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/rs/zerolog/log"
)

// IMAP is an alternative mailbox backend for plain IMAP servers. The \Seen
// flag stands in for the processed marker: unprocessed means unseen, and
// MarkProcessed stores \Seen on the message.
type IMAP struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string // defaults to INBOX

	cl *client.Client
}

func (m *IMAP) connect() error {
	if m.cl != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	cl, err := client.DialTLS(addr, &tls.Config{
		ServerName: m.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("imap dial: %w", err)
	}
	if err := cl.Login(m.Username, m.Password); err != nil {
		_ = cl.Logout()
		return fmt.Errorf("imap login: %w", err)
	}
	m.cl = cl
	log.Info().Str("host", m.Host).Msg("connected to IMAP server")
	return nil
}

// Close logs out from the server.
func (m *IMAP) Close() error {
	if m.cl == nil {
		return nil
	}
	err := m.cl.Logout()
	m.cl = nil
	return err
}

// dropConn discards the cached connection after a failed command so the next
// call re-dials instead of reusing a dead session.
func (m *IMAP) dropConn() {
	if m.cl == nil {
		return
	}
	_ = m.cl.Logout()
	m.cl = nil
}

func (m *IMAP) folder() string {
	if m.Folder != "" {
		return m.Folder
	}
	return "INBOX"
}

// ListUnprocessed searches for unseen messages, fetches the newest max of
// them and parses each into an Email.
func (m *IMAP) ListUnprocessed(_ context.Context, max int) ([]Email, error) {
	if err := m.connect(); err != nil {
		return nil, err
	}
	if _, err := m.cl.Select(m.folder(), false); err != nil {
		m.dropConn()
		return nil, fmt.Errorf("imap select: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := m.cl.UidSearch(criteria)
	if err != nil {
		m.dropConn()
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	uids = newestUIDs(uids, max)

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true} // do not set \Seen as a side effect
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- m.cl.UidFetch(seqSet, items, messages)
	}()

	var emails []Email
	for msg := range messages {
		emails = append(emails, m.parseMessage(msg, section))
	}
	if err := <-done; err != nil {
		m.dropConn()
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	sort.Slice(emails, func(i, j int) bool { return emails[i].ReceivedAt.After(emails[j].ReceivedAt) })
	return emails, nil
}

// newestUIDs keeps the newest max UIDs in descending order. Higher UIDs are
// newer.
func newestUIDs(uids []uint32, max int) []uint32 {
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}
	return uids
}

// MarkProcessed stores the \Seen flag on the message with the given UID.
func (m *IMAP) MarkProcessed(_ context.Context, id string) error {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("imap mark processed: bad uid %q: %w", id, err)
	}
	if err := m.connect(); err != nil {
		return err
	}
	if _, err := m.cl.Select(m.folder(), false); err != nil {
		m.dropConn()
		return fmt.Errorf("imap select: %w", err)
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.cl.UidStore(seqSet, op, []interface{}{imap.SeenFlag}, nil); err != nil {
		m.dropConn()
		return fmt.Errorf("imap store seen: %w", err)
	}
	return nil
}

func (m *IMAP) parseMessage(msg *imap.Message, section *imap.BodySectionName) Email {
	email := Email{
		ID:         strconv.FormatUint(uint64(msg.Uid), 10),
		ReceivedAt: msg.InternalDate,
	}
	if msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			email.Sender = msg.Envelope.From[0].Address()
		}
	}

	literal := msg.GetBody(section)
	if literal == nil {
		log.Warn().Str("uid", email.ID).Msg("imap message has no body section")
		return email
	}
	raw, err := io.ReadAll(literal)
	if err != nil {
		log.Warn().Err(err).Str("uid", email.ID).Msg("imap body read failed")
		return email
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		// Fall back to the raw body so the pipeline still sees something.
		log.Debug().Err(err).Str("uid", email.ID).Msg("mime parse failed, using raw body")
		email.Body = Body{ContentType: "text", Content: string(raw)}
		return email
	}
	if env.HTML != "" {
		email.Body = Body{ContentType: "html", Content: env.HTML}
	} else {
		email.Body = Body{ContentType: "text", Content: env.Text}
	}
	for _, part := range env.Attachments {
		email.Attachments = append(email.Attachments, Attachment{
			Filename:  part.FileName,
			MediaType: part.ContentType,
			Content:   part.Content,
		})
	}
	return email
}
