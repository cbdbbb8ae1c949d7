package email

import (
	"errors"
	"io/fs"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/peer-review/internal/model"
)

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

// candidate writes name with content into dir and returns it as a scan result.
func candidate(t *testing.T, dir, name, content string) model.CandidateFile {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	mtime := time.Date(2026, 10, 18, 17, 45, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return model.CandidateFile{
		Folder:  model.Folder{Path: dir},
		Path:    path,
		Name:    name,
		Size:    int64(len(content)),
		ModTime: mtime,
	}
}

func newTestComposer(cfg ComposerConfig) *Composer {
	if cfg.From.Address == "" {
		cfg.From = mail.Address{Name: "Author", Address: "author@example.org"}
	}
	if len(cfg.To) == 0 {
		cfg.To = []mail.Address{{Address: "reviewer@example.org"}}
	}
	cfg.Now = func() time.Time { return fixedNow }
	return NewComposer(osfs.New("/"), cfg)
}

func TestComposeAttachesFilesInOrder(t *testing.T) {
	root := t.TempDir()
	files := []model.CandidateFile{
		candidate(t, filepath.Join(root, "a"), "y.txt", "second draft"),
		candidate(t, filepath.Join(root, "b"), "z.txt", "only file"),
	}

	msg, err := newTestComposer(ComposerConfig{}).Compose(files)
	if err != nil {
		t.Fatalf("Compose returned an error: %v", err)
	}

	if len(msg.Attachments) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(msg.Attachments))
	}
	for i, want := range []struct{ name, data string }{{"y.txt", "second draft"}, {"z.txt", "only file"}} {
		att := msg.Attachments[i]
		if att.Filename != want.name {
			t.Errorf("attachment %d: filename %q, want %q", i, att.Filename, want.name)
		}
		if string(att.Data) != want.data {
			t.Errorf("attachment %d: data %q, want %q", i, att.Data, want.data)
		}
		if !strings.HasPrefix(att.ContentType, "text/plain") {
			t.Errorf("attachment %d: content type %q, want text/plain", i, att.ContentType)
		}
		if att.Source.Path != files[i].Path {
			t.Errorf("attachment %d: source %q, want %q", i, att.Source.Path, files[i].Path)
		}
	}

	if msg.Subject != "Peer review: y.txt, z.txt" {
		t.Errorf("unexpected subject: %s", msg.Subject)
	}
	for _, want := range []string{"- y.txt (12 B, from a, modified 2026-10-18 17:45)", "- z.txt (9 B, from b,"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("expected %q in body, got:\n%s", want, msg.Body)
		}
	}
	if !msg.Date.Equal(fixedNow) {
		t.Errorf("date = %v, want %v", msg.Date, fixedNow)
	}
	if !strings.HasSuffix(msg.ID, "@peer-review") {
		t.Errorf("unexpected message id %q", msg.ID)
	}
	if msg.From.Address != "author@example.org" || msg.To[0].Address != "reviewer@example.org" {
		t.Errorf("addresses not carried over: from=%v to=%v", msg.From, msg.To)
	}
}

func TestComposeCustomTemplates(t *testing.T) {
	root := t.TempDir()
	files := []model.CandidateFile{candidate(t, filepath.Join(root, "thesis"), "main.tex", `\documentclass{article}`)}

	msg, err := newTestComposer(ComposerConfig{
		SubjectTemplate: "[{{date}}] {{count}} file(s) from {{folders}}",
		BodyTemplate:    "Files: {{names}}",
	}).Compose(files)
	if err != nil {
		t.Fatalf("Compose returned an error: %v", err)
	}
	if msg.Subject != "[2026-10-19] 1 file(s) from thesis" {
		t.Errorf("unexpected subject: %s", msg.Subject)
	}
	if msg.Body != "Files: main.tex" {
		t.Errorf("unexpected body: %s", msg.Body)
	}
}

func TestComposeMissingFile(t *testing.T) {
	root := t.TempDir()
	f := candidate(t, root, "gone.txt", "soon deleted")
	if err := os.Remove(f.Path); err != nil {
		t.Fatal(err)
	}

	msg, err := newTestComposer(ComposerConfig{}).Compose([]model.CandidateFile{f})
	if msg != nil {
		t.Error("expected no message on failure")
	}
	if !errors.Is(err, ErrAttachment) {
		t.Fatalf("expected ErrAttachment, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected cause to be fs.ErrNotExist, got %v", err)
	}
	var attErr *AttachmentError
	if !errors.As(err, &attErr) || attErr.Path != f.Path {
		t.Errorf("expected AttachmentError for %s, got %v", f.Path, err)
	}
}

func TestComposeTooLarge(t *testing.T) {
	root := t.TempDir()
	small := candidate(t, root, "small.txt", "12345")
	big := candidate(t, filepath.Join(root, "big"), "big.txt", strings.Repeat("x", 64))

	c := newTestComposer(ComposerConfig{MaxAttachmentSize: 32})
	if _, err := c.Compose([]model.CandidateFile{small}); err != nil {
		t.Fatalf("small file rejected: %v", err)
	}

	_, err := c.Compose([]model.CandidateFile{small, big})
	if !errors.Is(err, ErrTooLarge) || !errors.Is(err, ErrAttachment) {
		t.Fatalf("expected ErrTooLarge attachment error, got %v", err)
	}
	if !strings.Contains(err.Error(), big.Path) {
		t.Errorf("error should name the file, got %v", err)
	}
}

func TestComposeNormalizesFilenames(t *testing.T) {
	root := t.TempDir()
	decomposed := "cafe\u0301.txt"
	f := candidate(t, root, decomposed, "menu")

	msg, err := newTestComposer(ComposerConfig{}).Compose([]model.CandidateFile{f})
	if err != nil {
		t.Fatalf("Compose returned an error: %v", err)
	}
	if got := msg.Attachments[0].Filename; got != "caf\u00e9.txt" {
		t.Errorf("filename %q is not NFC", got)
	}
}

func TestComposeStripFailureKeepsOriginal(t *testing.T) {
	root := t.TempDir()
	f := candidate(t, root, "scan.png", "definitely not a png")

	msg, err := newTestComposer(ComposerConfig{StripMetadata: true}).Compose([]model.CandidateFile{f})
	if err != nil {
		t.Fatalf("Compose returned an error: %v", err)
	}
	att := msg.Attachments[0]
	if att.ContentType != "image/png" {
		t.Errorf("content type %q, want image/png", att.ContentType)
	}
	if string(att.Data) != "definitely not a png" {
		t.Errorf("original data should be attached, got %q", att.Data)
	}
}

func TestComposeIsRepeatable(t *testing.T) {
	root := t.TempDir()
	files := []model.CandidateFile{
		candidate(t, filepath.Join(root, "a"), "y.txt", "draft"),
		candidate(t, filepath.Join(root, "b"), "z.txt", "notes"),
	}
	c := newTestComposer(ComposerConfig{})

	first, err := c.Compose(files)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Compose(files)
	if err != nil {
		t.Fatal(err)
	}

	if strings.Join(first.AttachmentNames(), ",") != strings.Join(second.AttachmentNames(), ",") {
		t.Errorf("attachments differ: %v vs %v", first.AttachmentNames(), second.AttachmentNames())
	}
	for i := range first.Attachments {
		if string(first.Attachments[i].Data) != string(second.Attachments[i].Data) {
			t.Errorf("attachment %d data differs between runs", i)
		}
	}
	if first.Subject != second.Subject || first.Body != second.Body {
		t.Error("subject or body differ between runs")
	}
	if first.ID == second.ID {
		t.Error("each message should get a fresh Message-ID")
	}
}
