// Package notifier sends the "you left your card" email described in
// the ForgottenCard notification, over authenticated TLS SMTP via
// gopkg.in/gomail.v2.
package notifier

import (
	"crypto/tls"
	"fmt"
	"strconv"

	"gopkg.in/gomail.v2"

	"github.com/thenewsboston-makerspace/portalboxd/internal/config"
)

// dialer is the slice of gomail's *Dialer this package needs, broken out
// so tests can supply a fake instead of a real SMTP connection.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Notifier sends one email per call; failures are logged by the caller
// and never propagate into the session FSM.
type Notifier struct {
	dialer      dialer
	from        string
	cc          string
	bcc         string
	replyTo     string
}

// New builds a Notifier from validated configuration. It returns an error
// only if the SMTP port isn't a valid integer; cmd/portalboxd treats
// notifier construction failure as a startup error (exit code 1).
func New(cfg config.Email) (*Notifier, error) {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("notifier: invalid smtp_port %q: %w", cfg.SMTPPort, err)
	}

	d := gomail.NewDialer(cfg.SMTPServer, port, cfg.AuthUser, cfg.AuthPassword)
	if cfg.WeakCertificate {
		// email.my_smtp_server_uses_a_weak_certificate accepts TLS 1.0 and
		// skips verification of the server certificate; the cipher suite
		// list itself is left at Go's default.
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS10}
	}

	return &Notifier{
		dialer:  d,
		from:    cfg.FromAddress,
		cc:      cfg.CCAddress,
		bcc:     cfg.BCCAddress,
		replyTo: cfg.ReplyTo,
	}, nil
}

// Send delivers one email to "to", honoring the per-call recipient —
// Open question (b): the legacy source ignores this argument and
// always mails the config's to_address; this is the corrected behavior.
func (n *Notifier) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if n.cc != "" {
		m.SetHeader("Cc", n.cc)
	}
	if n.bcc != "" {
		m.SetHeader("Bcc", n.bcc)
	}
	if n.replyTo != "" {
		m.SetHeader("Reply-To", n.replyTo)
	}

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("notifier: send to %s: %w", to, err)
	}
	return nil
}
