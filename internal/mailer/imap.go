package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/peer-review/internal/model"
)

// DefaultDraftsMailbox is used when no IMAP mailbox is configured.
const DefaultDraftsMailbox = "Drafts"

// IMAPConfig describes the mailbox that receives drafts.
type IMAPConfig struct {
	Addr     string
	Username string
	Password string
	Mailbox  string
	Security string
	Timeout  time.Duration

	TLSConfig *tls.Config
}

// IMAPDispatcher stores the message as an unsent draft, leaving the final
// send to the author's mail client.
type IMAPDispatcher struct {
	cfg    IMAPConfig
	logger *slog.Logger
}

func NewIMAP(cfg IMAPConfig, logger *slog.Logger) *IMAPDispatcher {
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultDraftsMailbox
	}
	if cfg.Security == "" {
		cfg.Security = SecurityTLS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPDispatcher{cfg: cfg, logger: logger}
}

func (d *IMAPDispatcher) Name() string { return TransportIMAP }

func (d *IMAPDispatcher) Dispatch(ctx context.Context, msg *model.Message, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return dispatchErr(d.Name(), err)
	}

	c, err := d.dial()
	if err != nil {
		return dispatchErr(d.Name(), err)
	}
	defer c.Logout()
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(d.cfg.Username, d.cfg.Password); err != nil {
		return dispatchErr(d.Name(), fmt.Errorf("login as %s: %w", d.cfg.Username, err))
	}

	flags := []string{imap.DraftFlag, imap.SeenFlag}
	if err := c.Append(d.cfg.Mailbox, flags, msg.Date, bytes.NewBuffer(raw)); err != nil {
		return dispatchErr(d.Name(), fmt.Errorf("append to %s: %w", d.cfg.Mailbox, err))
	}

	d.logger.Info("imap: stored draft", "addr", d.cfg.Addr, "mailbox", d.cfg.Mailbox, "size", len(raw))
	return nil
}

func (d *IMAPDispatcher) tlsConfig() *tls.Config {
	if d.cfg.TLSConfig != nil {
		return d.cfg.TLSConfig
	}
	host, _, err := net.SplitHostPort(d.cfg.Addr)
	if err != nil {
		host = d.cfg.Addr
	}
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}

func (d *IMAPDispatcher) dial() (*client.Client, error) {
	dialer := &net.Dialer{Timeout: d.cfg.Timeout}

	if d.cfg.Security == SecurityTLS {
		c, err := client.DialWithDialerTLS(dialer, d.cfg.Addr, d.tlsConfig())
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", d.cfg.Addr, err)
		}
		c.Timeout = d.cfg.Timeout
		return c, nil
	}

	c, err := client.DialWithDialer(dialer, d.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.cfg.Addr, err)
	}
	c.Timeout = d.cfg.Timeout

	if d.cfg.Security == SecuritySTARTTLS {
		ok, err := c.SupportStartTLS()
		if err != nil {
			c.Logout()
			return nil, fmt.Errorf("capability: %w", err)
		}
		if !ok {
			c.Logout()
			return nil, fmt.Errorf("server %s does not support STARTTLS", d.cfg.Addr)
		}
		if err := c.StartTLS(d.tlsConfig()); err != nil {
			c.Logout()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	return c, nil
}
