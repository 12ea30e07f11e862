// Package smtp implements the outbound mail delivery adapter. It speaks the
// SMTP protocol directly over one short-lived TLS connection per message so
// the delivery outcome (accepted queue id or exact rejection code) is visible
// to the queue processor.
package smtp

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"time"

	apperrors "github.com/goformed/backoffice/internal/errors"
	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

// ProviderName identifies this adapter in email logs.
const ProviderName = "smtp"

// Config holds the mail server connection settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	// Timeout bounds the TLS dial and the whole protocol exchange.
	Timeout time.Duration
}

// Client delivers one email per connection. No pooling: each job pays the
// full handshake cost, which is acceptable at this volume.
type Client struct {
	cfg Config
}

// NewClient creates a new SMTP delivery client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg}
}

// Send transmits a single email job. The protocol sequence is:
// connect, greeting, EHLO, AUTH LOGIN, MAIL FROM, RCPT TO, DATA with a
// MIME multipart body, QUIT. Any unexpected status code or transport error
// is surfaced as a failure; the connection is closed on every exit path.
func (c *Client) Send(ctx context.Context, job *domain.EmailJob) (domain.DeliveryResult, error) {
	var result domain.DeliveryResult

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.cfg.Timeout},
		Config:    &tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12},
	}

	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return result, apperrors.Wrap(err, "smtp connect failed")
	}

	// Force-close on all exit paths so a failed exchange never leaks a socket.
	defer func() {
		_ = rawConn.Close()
	}()

	if err := rawConn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return result, apperrors.Wrap(err, "smtp deadline failed")
	}

	conn := textproto.NewConn(rawConn)

	// Server greeting
	if _, _, err := conn.ReadResponse(220); err != nil {
		return result, apperrors.Wrap(err, "smtp greeting failed")
	}

	if err := c.exchange(conn, 250, "EHLO %s", clientHostname()); err != nil {
		return result, apperrors.Wrap(err, "smtp ehlo failed")
	}

	if err := c.authenticate(conn); err != nil {
		return result, err
	}

	if err := c.exchange(conn, 250, "MAIL FROM:<%s>", c.cfg.FromAddress); err != nil {
		return result, apperrors.Wrap(err, "smtp mail from rejected")
	}

	if err := c.exchange(conn, 250, "RCPT TO:<%s>", job.Recipient); err != nil {
		return result, apperrors.Wrap(err, "smtp rcpt to rejected")
	}

	if err := c.exchange(conn, 354, "DATA"); err != nil {
		return result, apperrors.Wrap(err, "smtp data command rejected")
	}

	// DotWriter applies dot-stuffing and writes the terminating "." line.
	dw := conn.DotWriter()
	if _, err := dw.Write(buildMessage(c.cfg.FromName, c.cfg.FromAddress, job)); err != nil {
		_ = dw.Close()
		return result, apperrors.Wrap(err, "smtp message write failed")
	}
	if err := dw.Close(); err != nil {
		return result, apperrors.Wrap(err, "smtp message terminator failed")
	}

	_, acceptMsg, err := conn.ReadResponse(250)
	if err != nil {
		return result, apperrors.Wrap(err, "smtp message not accepted")
	}

	// Best-effort farewell; delivery is already acknowledged.
	_ = c.exchange(conn, 221, "QUIT")

	result.Provider = ProviderName
	result.MessageID = parseQueueID(acceptMsg)
	return result, nil
}

// authenticate performs AUTH LOGIN with base64-encoded credentials.
// Only a 235 reply is treated as success.
func (c *Client) authenticate(conn *textproto.Conn) error {
	if err := c.exchange(conn, 334, "AUTH LOGIN"); err != nil {
		return apperrors.Wrap(err, "smtp auth not accepted")
	}

	encodedUser := base64.StdEncoding.EncodeToString([]byte(c.cfg.Username))
	if err := c.exchange(conn, 334, "%s", encodedUser); err != nil {
		return apperrors.Wrap(err, "smtp username rejected")
	}

	encodedPass := base64.StdEncoding.EncodeToString([]byte(c.cfg.Password))
	if err := c.exchange(conn, 235, "%s", encodedPass); err != nil {
		return apperrors.Wrap(apperrors.ErrUnauthorized, fmt.Sprintf("smtp authentication failed: %v", err))
	}

	return nil
}

// exchange sends one command line and verifies the expected reply code.
func (c *Client) exchange(conn *textproto.Conn, expectCode int, format string, args ...any) error {
	if err := conn.PrintfLine(format, args...); err != nil {
		return err
	}
	_, _, err := conn.ReadResponse(expectCode)
	return err
}

// clientHostname returns the hostname announced in EHLO.
func clientHostname() string {
	host, err := hostname()
	if err != nil || host == "" {
		return "localhost"
	}
	return host
}
