package smtp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

func TestBuildMessage(t *testing.T) {
	job := &domain.EmailJob{
		Recipient:    "customer@example.co.uk",
		Subject:      "Your company formation update",
		TemplateName: "admin_notification",
		TemplateData: map[string]any{"message": "Your documents are ready."},
	}

	msg := string(buildMessage("GoFormed", "noreply@goformed.co.uk", job))

	assert.Contains(t, msg, "From: GoFormed <noreply@goformed.co.uk>")
	assert.Contains(t, msg, "To: customer@example.co.uk")
	assert.Contains(t, msg, "Subject: Your company formation update")
	assert.Contains(t, msg, "MIME-Version: 1.0")
	assert.Contains(t, msg, "multipart/alternative")

	// Both alternatives carry the message, separated by the fixed boundary
	assert.Equal(t, 3, strings.Count(msg, "--"+mimeBoundary))
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, msg, "Content-Type: text/html; charset=utf-8")
	assert.Equal(t, 2, strings.Count(msg, "Your documents are ready."))
	assert.True(t, strings.HasSuffix(msg, "--"+mimeBoundary+"--\r\n"))
}

func TestRenderBody_FallsBackToSubject(t *testing.T) {
	job := &domain.EmailJob{
		Subject:      "Payment received",
		TemplateData: map[string]any{},
	}

	text, html := renderBody(job)
	assert.Equal(t, "Payment received", text)
	assert.Contains(t, html, "Payment received")
}

func TestParseQueueID(t *testing.T) {
	tests := []struct {
		reply string
		id    string
	}{
		{"2.0.0 Ok: queued as 4XyZ12", "4XyZ12"},
		{"2.0.0 Ok: Queued as ABC 250 done", "ABC"},
		{"2.0.0 Ok", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.id, parseQueueID(tt.reply), tt.reply)
	}
}
