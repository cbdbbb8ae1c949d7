package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Folders             []string `toml:"folders"`
	IncludeHidden       bool     `toml:"include_hidden"`
	To                  []string `toml:"to"`
	Cc                  []string `toml:"cc"`
	From                string   `toml:"from"`
	FromName            string   `toml:"from_name"`
	Subject             string   `toml:"subject"`
	Body                string   `toml:"body"`
	StripMetadata       bool     `toml:"strip_metadata"`
	MaxAttachmentSizeMB int      `toml:"max_attachment_size_mb"`
	PGPPublicKey        string   `toml:"pgp_public_key"`
	Transport           string   `toml:"transport"`
	Timeout             string   `toml:"timeout"`
	LogLevel            string   `toml:"log_level"`

	SMTP struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		User     string `toml:"user"`
		Password string `toml:"password"`
		Security string `toml:"security"`
	} `toml:"smtp"`

	IMAP struct {
		Addr     string `toml:"addr"`
		User     string `toml:"user"`
		Password string `toml:"password"`
		Mailbox  string `toml:"mailbox"`
		Security string `toml:"security"`
	} `toml:"imap"`

	Mbox struct {
		Path string `toml:"path"`
	} `toml:"mbox"`

	Sendmail struct {
		Path string `toml:"path"`
	} `toml:"sendmail"`
}

// loadFile overlays the keys present in the TOML file at path onto cfg.
func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("%w: config load failed (%s): %v", ErrInvalid, path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: config %s: unknown keys: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}

	setString := func(dst *string, value string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(value)
		}
	}
	setList := func(dst *[]string, value []string, key string) {
		if meta.IsDefined(key) {
			*dst = normalizeList(value)
		}
	}

	setList(&cfg.Folders, raw.Folders, "folders")
	setList(&cfg.To, raw.To, "to")
	setList(&cfg.Cc, raw.Cc, "cc")
	setString(&cfg.FromEmail, raw.From, "from")
	setString(&cfg.FromName, raw.FromName, "from_name")
	setString(&cfg.PGPPublicKeyPath, raw.PGPPublicKey, "pgp_public_key")
	setString(&cfg.Transport, raw.Transport, "transport")
	setString(&cfg.LogLevel, raw.LogLevel, "log_level")

	// Templates keep their whitespace.
	if meta.IsDefined("subject") {
		cfg.Subject = raw.Subject
	}
	if meta.IsDefined("body") {
		cfg.Body = raw.Body
	}
	if meta.IsDefined("include_hidden") {
		cfg.IncludeHidden = raw.IncludeHidden
	}
	if meta.IsDefined("strip_metadata") {
		cfg.StripMetadata = raw.StripMetadata
	}
	if meta.IsDefined("max_attachment_size_mb") {
		cfg.MaxAttachmentSizeMB = raw.MaxAttachmentSizeMB
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("%w: config %s: parse timeout: %v", ErrInvalid, path, err)
		}
		cfg.Timeout = d
	}

	setString(&cfg.SMTPHost, raw.SMTP.Host, "smtp", "host")
	setString(&cfg.SMTPUser, raw.SMTP.User, "smtp", "user")
	setString(&cfg.SMTPPass, raw.SMTP.Password, "smtp", "password")
	setString(&cfg.SMTPSecurity, raw.SMTP.Security, "smtp", "security")
	if meta.IsDefined("smtp", "port") {
		cfg.SMTPPort = raw.SMTP.Port
	}

	setString(&cfg.IMAPAddr, raw.IMAP.Addr, "imap", "addr")
	setString(&cfg.IMAPUser, raw.IMAP.User, "imap", "user")
	setString(&cfg.IMAPPass, raw.IMAP.Password, "imap", "password")
	setString(&cfg.IMAPMailbox, raw.IMAP.Mailbox, "imap", "mailbox")
	setString(&cfg.IMAPSecurity, raw.IMAP.Security, "imap", "security")

	setString(&cfg.MboxPath, raw.Mbox.Path, "mbox", "path")
	setString(&cfg.SendmailPath, raw.Sendmail.Path, "sendmail", "path")

	return nil
}
