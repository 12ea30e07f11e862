package smtp

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"os"
	"strings"
	"time"

	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

// mimeBoundary is the fixed multipart boundary used for every message.
const mimeBoundary = "goformed-mime-boundary-4f9d2c"

// htmlTemplate renders the HTML part for queued notifications.
var htmlTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1a1a2e;">
    <h2>{{.Subject}}</h2>
    <p>{{.Message}}</p>
    <hr>
    <p style="font-size: 12px; color: #888;">GoFormed &middot; UK company formation</p>
  </body>
</html>
`))

// buildMessage assembles the full RFC 5322 message: headers plus a
// multipart/alternative body with a plain-text part and an HTML part.
func buildMessage(fromName, fromAddress string, job *domain.EmailJob) []byte {
	textBody, htmlBody := renderBody(job)

	var b bytes.Buffer
	writeHeader(&b, "From", fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), fromAddress))
	writeHeader(&b, "To", job.Recipient)
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", job.Subject))
	writeHeader(&b, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mimeBoundary))
	b.WriteString("\r\n")

	writePart(&b, "text/plain; charset=utf-8", textBody)
	writePart(&b, "text/html; charset=utf-8", htmlBody)
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)

	return b.Bytes()
}

// renderBody produces the plain-text and HTML alternatives for a job.
// The "message" key of the template data carries the notification text.
func renderBody(job *domain.EmailJob) (string, string) {
	message, _ := job.TemplateData["message"].(string)
	if message == "" {
		message = job.Subject
	}

	var html bytes.Buffer
	err := htmlTemplate.Execute(&html, struct {
		Subject string
		Message string
	}{Subject: job.Subject, Message: message})
	if err != nil {
		// Fall back to the plain text when template execution fails
		return message, template.HTMLEscapeString(message)
	}

	return message, html.String()
}

// writeHeader writes one message header line.
func writeHeader(b *bytes.Buffer, key, value string) {
	fmt.Fprintf(b, "%s: %s\r\n", key, value)
}

// writePart writes one MIME body part with its boundary delimiter.
func writePart(b *bytes.Buffer, contentType, body string) {
	fmt.Fprintf(b, "--%s\r\n", mimeBoundary)
	fmt.Fprintf(b, "Content-Type: %s\r\n\r\n", contentType)
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
}

// parseQueueID extracts the server-assigned queue id from a 250 acceptance
// reply such as "2.0.0 Ok: queued as 4XyZ12". Returns "" when absent.
func parseQueueID(acceptMsg string) string {
	lower := strings.ToLower(acceptMsg)
	marker := "queued as "
	idx := strings.LastIndex(lower, marker)
	if idx == -1 {
		return ""
	}

	id := acceptMsg[idx+len(marker):]
	if end := strings.IndexAny(id, " \r\n"); end != -1 {
		id = id[:end]
	}
	return id
}

// hostname is indirected for the EHLO announcement.
var hostname = os.Hostname
