package email

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/peer-review/internal/media"
	"github.com/peer-review/internal/model"
)

const (
	DefaultSubject = "Peer review: {{names}}"
	DefaultBody    = "Hello,\n\n" +
		"please find attached the latest version of the following files for review:\n\n" +
		"{{files}}\n\n" +
		"Thank you!\n"

	messageIDDomain = "peer-review"
)

// ComposerConfig holds the addressing and templates applied to every message.
type ComposerConfig struct {
	From            mail.Address
	To              []mail.Address
	Cc              []mail.Address
	SubjectTemplate string
	BodyTemplate    string

	// StripMetadata re-encodes JPEG and PNG attachments without EXIF data.
	StripMetadata bool
	// MaxAttachmentSize is the per-file limit in bytes. Zero disables it.
	MaxAttachmentSize int64

	Logger *slog.Logger
	Now    func() time.Time
}

// Composer turns scanned files into a Message.
type Composer struct {
	fs  billy.Filesystem
	cfg ComposerConfig
}

func NewComposer(fs billy.Filesystem, cfg ComposerConfig) *Composer {
	if cfg.SubjectTemplate == "" {
		cfg.SubjectTemplate = DefaultSubject
	}
	if cfg.BodyTemplate == "" {
		cfg.BodyTemplate = DefaultBody
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Composer{fs: fs, cfg: cfg}
}

// Compose reads every file and returns the message carrying them, one
// attachment per file in the given order.
func (c *Composer) Compose(files []model.CandidateFile) (*model.Message, error) {
	attachments := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		att, err := c.attach(f)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}

	now := c.cfg.Now()
	values := templateValues(files, now)

	return &model.Message{
		ID:          uuid.NewString() + "@" + messageIDDomain,
		From:        c.cfg.From,
		To:          c.cfg.To,
		Cc:          c.cfg.Cc,
		Subject:     RenderTemplate(c.cfg.SubjectTemplate, values),
		Body:        RenderTemplate(c.cfg.BodyTemplate, values),
		Date:        now,
		Attachments: attachments,
	}, nil
}

func (c *Composer) attach(f model.CandidateFile) (model.Attachment, error) {
	data, err := c.read(f.Path)
	if err != nil {
		return model.Attachment{}, err
	}

	name := norm.NFC.String(filepath.Base(f.Name))
	att := model.Attachment{
		Filename:    name,
		ContentType: contentType(name, data),
		Data:        data,
		Source:      f,
	}

	if c.cfg.StripMetadata {
		changed, err := media.StripAttachment(&att)
		switch {
		case err != nil:
			c.cfg.Logger.Warn("composer: metadata not stripped, attaching original", "file", f.Path, "err", err)
		case changed:
			c.cfg.Logger.Debug("composer: stripped image metadata", "file", f.Path,
				"before", humanize.Bytes(uint64(len(data))), "after", humanize.Bytes(uint64(len(att.Data))))
		}
	}

	c.cfg.Logger.Debug("composer: attached file", "file", f.Path, "content_type", att.ContentType, "size", humanize.Bytes(uint64(len(att.Data))))
	return att, nil
}

func (c *Composer) read(path string) ([]byte, error) {
	file, err := c.fs.Open(path)
	if err != nil {
		return nil, &AttachmentError{Path: path, Err: err}
	}
	defer file.Close()

	limit := c.cfg.MaxAttachmentSize
	var r io.Reader = file
	if limit > 0 {
		r = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &AttachmentError{Path: path, Err: err}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &AttachmentError{
			Path: path,
			Err:  fmt.Errorf("%w: exceeds limit of %s", ErrTooLarge, humanize.Bytes(uint64(limit))),
		}
	}
	return data, nil
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func templateValues(files []model.CandidateFile, now time.Time) map[string]string {
	names := make([]string, len(files))
	folders := make([]string, len(files))
	var listing strings.Builder
	for i, f := range files {
		names[i] = norm.NFC.String(f.Name)
		folders[i] = f.Folder.Name()
		if i > 0 {
			listing.WriteString("\n")
		}
		fmt.Fprintf(&listing, "- %s (%s, from %s, modified %s)",
			names[i], humanize.Bytes(uint64(f.Size)), folders[i], f.ModTime.Format("2006-01-02 15:04"))
	}
	return map[string]string{
		"date":    now.Format("2006-01-02"),
		"count":   strconv.Itoa(len(files)),
		"names":   strings.Join(names, ", "),
		"folders": strings.Join(folders, ", "),
		"files":   listing.String(),
	}
}
