package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/peer-review/internal/mailer"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// StdoutSender is the From address used for dry runs without a sender.
const StdoutSender = "peer-review@localhost"

type Config struct {
	// Input
	Folders       []string
	IncludeHidden bool

	// Message
	To                  []string
	Cc                  []string
	FromEmail           string
	FromName            string
	Subject             string
	Body                string
	StripMetadata       bool
	MaxAttachmentSizeMB int
	PGPPublicKeyPath    string

	// Transport
	Transport string
	DryRun    bool
	Timeout   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	SMTPSecurity string

	IMAPAddr     string
	IMAPUser     string
	IMAPPass     string
	IMAPMailbox  string
	IMAPSecurity string

	MboxPath     string
	SendmailPath string

	LogLevel string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MaxAttachmentSizeMB: 25,
		Transport:           mailer.TransportAuto,
		Timeout:             30 * time.Second,
		SMTPPort:            587,
		SMTPSecurity:        mailer.SecuritySTARTTLS,
		IMAPMailbox:         mailer.DefaultDraftsMailbox,
		IMAPSecurity:        mailer.SecurityTLS,
		SendmailPath:        mailer.DefaultSendmailPath,
		LogLevel:            "warn",
	}
}

// Load builds the configuration from defaults, the optional TOML file at path
// (or PEER_REVIEW_CONFIG) and the environment. A .env file in the working
// directory is loaded first when present. Flags are applied separately with
// ApplyFlags.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = getEnv("PEER_REVIEW_CONFIG", "")
	}
	if path != "" {
		if err := loadFile(expandHome(path), cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envList("PEER_REVIEW_FOLDERS", &cfg.Folders)
	envList("PEER_REVIEW_TO", &cfg.To)
	envList("PEER_REVIEW_CC", &cfg.Cc)
	envString("PEER_REVIEW_SUBJECT", &cfg.Subject)
	envString("PEER_REVIEW_BODY", &cfg.Body)
	envString("PEER_REVIEW_TRANSPORT", &cfg.Transport)
	envString("SMTP_HOST", &cfg.SMTPHost)
	envString("SMTP_USER", &cfg.SMTPUser)
	envString("SMTP_PASS", &cfg.SMTPPass)
	envString("SMTP_SECURITY", &cfg.SMTPSecurity)
	envString("SMTP_FROM_EMAIL", &cfg.FromEmail)
	envString("SMTP_FROM_NAME", &cfg.FromName)
	envString("IMAP_ADDR", &cfg.IMAPAddr)
	envString("IMAP_USER", &cfg.IMAPUser)
	envString("IMAP_PASS", &cfg.IMAPPass)
	envString("IMAP_MAILBOX", &cfg.IMAPMailbox)
	envString("IMAP_SECURITY", &cfg.IMAPSecurity)
	envString("MBOX_PATH", &cfg.MboxPath)
	envString("SENDMAIL_PATH", &cfg.SendmailPath)
	envString("PGP_PUBLIC_KEY_PATH", &cfg.PGPPublicKeyPath)
	envString("LOG_LEVEL", &cfg.LogLevel)

	return errors.Join(
		envInt("SMTP_PORT", &cfg.SMTPPort),
		envInt("MAX_ATTACHMENT_SIZE_MB", &cfg.MaxAttachmentSizeMB),
		envBool("STRIP_METADATA", &cfg.StripMetadata),
		envBool("INCLUDE_HIDDEN", &cfg.IncludeHidden),
		envDuration("PEER_REVIEW_TIMEOUT", &cfg.Timeout),
	)
}

// ResolvedTransport returns the transport that will actually be used.
func (c *Config) ResolvedTransport() string {
	if c.DryRun {
		return mailer.TransportStdout
	}
	t := strings.ToLower(strings.TrimSpace(c.Transport))
	if t == "" || t == mailer.TransportAuto {
		if c.SMTPHost != "" {
			return mailer.TransportSMTP
		}
		return mailer.TransportStdout
	}
	return t
}

// Validate reports every problem found, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if len(c.Folders) == 0 {
		fail("at least one folder is required")
	}

	t := strings.ToLower(strings.TrimSpace(c.Transport))
	if t != "" && !slices.Contains(mailer.Transports, t) {
		fail("unknown transport %q (want one of %s)", c.Transport, strings.Join(mailer.Transports, ", "))
	}
	transport := c.ResolvedTransport()

	if transport != mailer.TransportStdout {
		if len(c.To) == 0 {
			fail("at least one recipient is required")
		}
		if c.FromEmail == "" {
			fail("sender address is required (SMTP_FROM_EMAIL or --from)")
		}
	}
	for _, addr := range append(append([]string{}, c.To...), c.Cc...) {
		if _, err := mail.ParseAddress(addr); err != nil {
			fail("invalid recipient %q: %v", addr, err)
		}
	}
	if c.FromEmail != "" {
		if _, err := mail.ParseAddress(c.FromEmail); err != nil {
			fail("invalid sender %q: %v", c.FromEmail, err)
		}
	}

	switch transport {
	case mailer.TransportSMTP:
		if c.SMTPHost == "" {
			fail("SMTP_HOST is required for the smtp transport")
		}
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			fail("SMTP_PORT %d out of range", c.SMTPPort)
		}
		if !validSecurity(c.SMTPSecurity) {
			fail("unknown SMTP security %q", c.SMTPSecurity)
		}
	case mailer.TransportIMAP:
		if c.IMAPAddr == "" {
			fail("IMAP_ADDR is required for the imap transport")
		}
		if c.IMAPUser == "" {
			fail("IMAP_USER is required for the imap transport")
		}
		if !validSecurity(c.IMAPSecurity) {
			fail("unknown IMAP security %q", c.IMAPSecurity)
		}
	case mailer.TransportMbox:
		if c.MboxPath == "" {
			fail("MBOX_PATH is required for the mbox transport")
		}
	case mailer.TransportSendmail:
		if c.SendmailPath == "" {
			fail("SENDMAIL_PATH is required for the sendmail transport")
		}
	}

	if c.MaxAttachmentSizeMB < 0 {
		fail("MAX_ATTACHMENT_SIZE_MB must not be negative")
	}
	if c.Timeout <= 0 {
		fail("timeout must be positive")
	}
	if _, ok := ParseLevel(c.LogLevel); !ok {
		fail("unknown log level %q", c.LogLevel)
	}

	return errors.Join(errs...)
}

// Sender returns the From address, falling back to StdoutSender when none is
// configured.
func (c *Config) Sender() (mail.Address, error) {
	email := c.FromEmail
	if email == "" {
		email = StdoutSender
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return mail.Address{}, fmt.Errorf("%w: invalid sender %q: %v", ErrInvalid, email, err)
	}
	if c.FromName != "" {
		addr.Name = c.FromName
	}
	return *addr, nil
}

// Addresses parses a list of recipient strings.
func Addresses(list []string) ([]mail.Address, error) {
	out := make([]mail.Address, 0, len(list))
	for _, raw := range list {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid recipient %q: %v", ErrInvalid, raw, err)
		}
		out = append(out, *addr)
	}
	return out, nil
}

// MaxAttachmentSize returns the per-file limit in bytes.
func (c *Config) MaxAttachmentSize() int64 {
	return int64(c.MaxAttachmentSizeMB) << 20
}

// FolderPaths returns the folder list with ~ expanded and relative paths
// resolved against the working directory.
func (c *Config) FolderPaths() []string {
	out := make([]string, len(c.Folders))
	for i, f := range c.Folders {
		path := expandHome(f)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		out[i] = path
	}
	return out
}

func validSecurity(s string) bool {
	switch s {
	case mailer.SecuritySTARTTLS, mailer.SecurityTLS, mailer.SecurityNone:
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envString(key string, dst *string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(value)
	}
}

// envList parses a comma-separated list, dropping empty items.
func envList(key string, dst *[]string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = splitList(value)
	}
}

func envInt(key string, dst *int) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %q is not a number", ErrInvalid, key, value)
	}
	*dst = i
	return nil
}

func envBool(key string, dst *bool) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %q is not a boolean", ErrInvalid, key, value)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	*dst = d
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// trimList drops blank entries without splitting, so paths may contain commas.
func trimList(in []string) []string {
	var out []string
	for _, item := range in {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeList(in []string) []string {
	var out []string
	for _, item := range in {
		out = append(out, splitList(item)...)
	}
	return out
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
