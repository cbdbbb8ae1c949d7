package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/peer-review/internal/model"
	"github.com/peer-review/pkg/version"
)

// Build serializes msg as an RFC 5322 message with CRLF line endings. With a
// non-nil enc the MIME body is encrypted and sent as PGP/MIME (RFC 3156).
func Build(msg *model.Message, enc *Encryptor) ([]byte, error) {
	body, boundary, err := buildMixedBody(msg)
	if err != nil {
		return nil, fmt.Errorf("building MIME body: %w", err)
	}

	var buf bytes.Buffer
	writeHeaders(&buf, msg)

	if enc == nil {
		writeHeader(&buf, "Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": boundary}))
		buf.WriteString("\r\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	// The inner entity carries its own Content-Type so the decrypted result
	// is parseable on its own.
	var inner bytes.Buffer
	writeHeader(&inner, "Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": boundary}))
	inner.WriteString("\r\n")
	inner.Write(body)

	encrypted, err := enc.Encrypt(inner.Bytes())
	if err != nil {
		return nil, fmt.Errorf("pgp encryption: %w", err)
	}

	if err := writeEncryptedBody(&buf, encrypted); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeaders(buf *bytes.Buffer, msg *model.Message) {
	writeHeader(buf, "From", msg.From.String())
	writeHeader(buf, "To", formatAddressList(msg.To))
	if len(msg.Cc) > 0 {
		writeHeader(buf, "Cc", formatAddressList(msg.Cc))
	}
	writeHeader(buf, "Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject)))
	writeHeader(buf, "Date", msg.Date.Format(time.RFC1123Z))
	writeHeader(buf, "Message-ID", "<"+msg.ID+">")
	writeHeader(buf, "MIME-Version", "1.0")
	writeHeader(buf, "User-Agent", version.UserAgent())
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func formatAddressList(addrs []mail.Address) string {
	out := make([]string, len(addrs))
	for i := range addrs {
		out[i] = addrs[i].String()
	}
	return strings.Join(out, ", ")
}

// buildMixedBody renders the text part followed by one part per attachment.
func buildMixedBody(msg *model.Message) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, "", err
	}
	qp := quotedprintable.NewWriter(textPart)
	if _, err := qp.Write([]byte(msg.Body)); err != nil {
		return nil, "", err
	}
	if err := qp.Close(); err != nil {
		return nil, "", err
	}

	for _, att := range msg.Attachments {
		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", att.ContentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", contentDisposition(att.Filename))

		attPart, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, "", err
		}
		if err := writeBase64Lines(attPart, att.Data); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.Boundary(), nil
}

func writeEncryptedBody(buf *bytes.Buffer, encrypted []byte) error {
	var body bytes.Buffer
	envelope := multipart.NewWriter(&body)

	writeHeader(buf, "Content-Type", mime.FormatMediaType("multipart/encrypted", map[string]string{
		"protocol": "application/pgp-encrypted",
		"boundary": envelope.Boundary(),
	}))
	buf.WriteString("\r\n")

	// Part 1: PGP/MIME version identification
	versionHeader := textproto.MIMEHeader{}
	versionHeader.Set("Content-Type", "application/pgp-encrypted")
	versionHeader.Set("Content-Description", "PGP/MIME version identification")
	versionPart, err := envelope.CreatePart(versionHeader)
	if err != nil {
		return err
	}
	if _, err := versionPart.Write([]byte("Version: 1\r\n")); err != nil {
		return err
	}

	// Part 2: encrypted payload
	encHeader := textproto.MIMEHeader{}
	encHeader.Set("Content-Type", `application/octet-stream; name="encrypted.asc"`)
	encHeader.Set("Content-Disposition", `inline; filename="encrypted.asc"`)
	encPart, err := envelope.CreatePart(encHeader)
	if err != nil {
		return err
	}
	if _, err := encPart.Write(encrypted); err != nil {
		return err
	}

	if err := envelope.Close(); err != nil {
		return err
	}
	buf.Write(body.Bytes())
	return nil
}

// writeBase64Lines writes data base64-encoded in 76-character lines per RFC 2045.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		if _, err := w.Write([]byte(encoded[i:end] + "\r\n")); err != nil {
			return err
		}
	}
	return nil
}

func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

// sanitizeHeader keeps header values on a single line.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
