package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// RegisterFlags defines the flags that override file and environment
// settings. Only flags set on the command line take effect.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "TOML config file (default $PEER_REVIEW_CONFIG)")
	fs.StringSlice("to", nil, "recipient address, repeatable or comma separated")
	fs.StringSlice("cc", nil, "carbon-copy address, repeatable or comma separated")
	fs.String("from", "", "sender address")
	fs.String("from-name", "", "sender display name")
	fs.String("subject", "", "subject template ({{names}}, {{count}}, {{date}}, {{folders}})")
	fs.String("body", "", "body template ({{files}}, {{names}}, {{count}}, {{date}}, {{folders}})")
	fs.String("transport", "", "auto, smtp, sendmail, mbox, imap or stdout")
	fs.Bool("dry-run", false, "print the message instead of sending it")
	fs.Duration("timeout", 0, "network timeout for smtp and imap")

	fs.String("smtp-host", "", "SMTP server host")
	fs.Int("smtp-port", 0, "SMTP server port")
	fs.String("smtp-user", "", "SMTP username (password from SMTP_PASS)")
	fs.String("smtp-security", "", "starttls, tls or none")

	fs.String("imap-addr", "", "IMAP server host:port for the imap transport")
	fs.String("imap-user", "", "IMAP username (password from IMAP_PASS)")
	fs.String("imap-mailbox", "", "IMAP mailbox that receives the draft")
	fs.String("imap-security", "", "tls, starttls or none")

	fs.String("mbox", "", "mbox file for the mbox transport")
	fs.String("sendmail", "", "sendmail binary for the sendmail transport")
	fs.String("pgp-key", "", "armored PGP public key to encrypt the message with")

	fs.Bool("strip-metadata", false, "remove EXIF metadata from JPEG and PNG attachments")
	fs.Bool("include-hidden", false, "consider dot files when picking the newest file")
	fs.Int("max-size", 0, "per-attachment size limit in MB (0 disables the limit)")
	fs.String("log-level", "", "debug, info, warn or error")
}

// ApplyFlags overlays explicitly set flags onto c. Non-empty args replace the
// folder list.
func (c *Config) ApplyFlags(fs *pflag.FlagSet, args []string) error {
	var errs []error
	str := func(name string, dst *string) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetString(name)
		errs = append(errs, err)
		*dst = strings.TrimSpace(v)
	}
	list := func(name string, dst *[]string) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetStringSlice(name)
		errs = append(errs, err)
		*dst = normalizeList(v)
	}
	boolean := func(name string, dst *bool) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetBool(name)
		errs = append(errs, err)
		*dst = v
	}
	integer := func(name string, dst *int) {
		if !fs.Changed(name) {
			return
		}
		v, err := fs.GetInt(name)
		errs = append(errs, err)
		*dst = v
	}

	list("to", &c.To)
	list("cc", &c.Cc)
	str("from", &c.FromEmail)
	str("from-name", &c.FromName)
	str("transport", &c.Transport)
	str("smtp-host", &c.SMTPHost)
	str("smtp-user", &c.SMTPUser)
	str("smtp-security", &c.SMTPSecurity)
	str("imap-addr", &c.IMAPAddr)
	str("imap-user", &c.IMAPUser)
	str("imap-mailbox", &c.IMAPMailbox)
	str("imap-security", &c.IMAPSecurity)
	str("mbox", &c.MboxPath)
	str("sendmail", &c.SendmailPath)
	str("pgp-key", &c.PGPPublicKeyPath)
	str("log-level", &c.LogLevel)
	integer("smtp-port", &c.SMTPPort)
	integer("max-size", &c.MaxAttachmentSizeMB)
	boolean("dry-run", &c.DryRun)
	boolean("strip-metadata", &c.StripMetadata)
	boolean("include-hidden", &c.IncludeHidden)

	if fs.Changed("subject") {
		v, err := fs.GetString("subject")
		errs = append(errs, err)
		c.Subject = v
	}
	if fs.Changed("body") {
		v, err := fs.GetString("body")
		errs = append(errs, err)
		c.Body = unescapeNewlines(v)
	}
	if fs.Changed("timeout") {
		v, err := fs.GetDuration("timeout")
		errs = append(errs, err)
		c.Timeout = v
	}

	if len(args) > 0 {
		c.Folders = trimList(args)
	}

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

// unescapeNewlines lets a body template given on the command line use \n.
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
