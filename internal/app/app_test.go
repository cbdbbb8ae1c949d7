package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peer-review/internal/config"
	"github.com/peer-review/internal/mailer"
	"github.com/peer-review/internal/scanner"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, content string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// reviewFolders lays out a/x.txt (older), a/y.txt (newer) and b/z.txt.
func reviewFolders(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	require.NoError(t, os.Mkdir(a, 0o755))
	require.NoError(t, os.Mkdir(b, 0o755))

	writeFile(t, a, "x.txt", "first draft", t0)
	writeFile(t, a, "y.txt", "second draft", t0.Add(time.Hour))
	writeFile(t, b, "z.txt", "figures", t0)
	return a, b
}

func testConfig(folders ...string) *config.Config {
	cfg := config.Default()
	cfg.Folders = folders
	cfg.To = []string{"reviewer@example.org"}
	cfg.FromEmail = "author@example.org"
	cfg.Transport = mailer.TransportStdout
	return cfg
}

func TestRunSelectsNewestFilePerFolder(t *testing.T) {
	a, b := reviewFolders(t)
	var stdout, stderr bytes.Buffer

	app, err := New(testConfig(a, b), Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)
	assert.Equal(t, mailer.TransportStdout, app.Transport())

	msg, err := app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"y.txt", "z.txt"}, msg.AttachmentNames())
	assert.Equal(t, "Peer review: y.txt, z.txt", msg.Subject)
	assert.Contains(t, stdout.String(), "Subject: Peer review: y.txt, z.txt\n")
	assert.Contains(t, stdout.String(), "Content-Disposition: attachment; filename=y.txt")
	assert.NotContains(t, stdout.String(), "x.txt")
}

func TestRunIsRepeatable(t *testing.T) {
	a, b := reviewFolders(t)

	var names [][]string
	for range 2 {
		var stdout bytes.Buffer
		app, err := New(testConfig(a, b), Options{Stdout: &stdout, Stderr: &bytes.Buffer{}})
		require.NoError(t, err)
		msg, err := app.Run(context.Background())
		require.NoError(t, err)
		names = append(names, msg.AttachmentNames())
	}
	assert.Equal(t, names[0], names[1])
}

func TestRunAbortsOnEmptyFolder(t *testing.T) {
	a, _ := reviewFolders(t)
	empty := t.TempDir()
	var stdout bytes.Buffer

	app, err := New(testConfig(a, empty), Options{Stdout: &stdout, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	_, err = app.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, scanner.ErrNotFound)

	var nf *scanner.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, filepath.Clean(empty), nf.Folder)
	assert.Empty(t, stdout.String(), "nothing should be dispatched")
}

func TestRunAbortsOnMissingFolder(t *testing.T) {
	a, _ := reviewFolders(t)
	missing := filepath.Join(t.TempDir(), "missing")
	var stdout bytes.Buffer

	app, err := New(testConfig(a, missing), Options{Stdout: &stdout, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	_, err = app.Run(context.Background())
	assert.ErrorIs(t, err, scanner.ErrNotFound)
	assert.Empty(t, stdout.String())
}

func TestRunHonorsCancelledContext(t *testing.T) {
	a, b := reviewFolders(t)
	var stdout bytes.Buffer

	app, err := New(testConfig(a, b), Options{Stdout: &stdout, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = app.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stdout.String())
}

func TestRunAppendsToMbox(t *testing.T) {
	a, b := reviewFolders(t)
	cfg := testConfig(a, b)
	cfg.Transport = mailer.TransportMbox
	cfg.MboxPath = filepath.Join(t.TempDir(), "review.mbox")

	app, err := New(cfg, Options{Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	_, err = app.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.MboxPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("From author@example.org ")))
	assert.Contains(t, string(data), "filename=y.txt")
	assert.Contains(t, string(data), "filename=z.txt")
}

func TestRunReportsDispatchFailure(t *testing.T) {
	a, b := reviewFolders(t)
	cfg := testConfig(a, b)
	cfg.Transport = mailer.TransportSendmail
	cfg.SendmailPath = filepath.Join(t.TempDir(), "no-such-sendmail")

	app, err := New(cfg, Options{Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	_, err = app.Run(context.Background())
	assert.ErrorIs(t, err, mailer.ErrDispatch)
}

func TestAutoTransportFallsBackToStdout(t *testing.T) {
	a, b := reviewFolders(t)
	cfg := testConfig(a, b)
	cfg.Transport = mailer.TransportAuto
	cfg.LogLevel = "warn"
	var stdout, stderr bytes.Buffer

	app, err := New(cfg, Options{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)
	assert.Equal(t, mailer.TransportStdout, app.Transport())
	assert.Contains(t, stderr.String(), "no SMTP host configured")
}

func TestAutoTransportPicksSMTP(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Transport = mailer.TransportAuto
	cfg.SMTPHost = "smtp.example.org"

	app, err := New(cfg, Options{Stderr: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Equal(t, mailer.TransportSMTP, app.Transport())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	_, err := New(cfg, Options{Stderr: &bytes.Buffer{}})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewRejectsUnreadablePGPKey(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.PGPPublicKeyPath = filepath.Join(t.TempDir(), "missing.asc")

	_, err := New(cfg, Options{Stderr: &bytes.Buffer{}})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
