package model

import (
	"net/mail"
	"time"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Source      CandidateFile
}

// Message is the email composed for a single run.
type Message struct {
	ID          string
	From        mail.Address
	To          []mail.Address
	Cc          []mail.Address
	Subject     string
	Body        string
	Date        time.Time
	Attachments []Attachment
}

// Recipients returns the envelope recipients: To followed by Cc.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc))
	for _, a := range m.To {
		out = append(out, a.Address)
	}
	for _, a := range m.Cc {
		out = append(out, a.Address)
	}
	return out
}

// AttachmentNames lists attachment file names in message order.
func (m *Message) AttachmentNames() []string {
	names := make([]string, len(m.Attachments))
	for i, a := range m.Attachments {
		names[i] = a.Filename
	}
	return names
}
