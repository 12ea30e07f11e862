package smtp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goformed/backoffice/internal/mailqueue/domain"
)

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient(Config{Host: "mail.example.com", Port: 465})
	assert.Equal(t, 30*time.Second, c.cfg.Timeout)
}

func TestClient_Send_ConnectFailure(t *testing.T) {
	c := NewClient(Config{Host: "127.0.0.1", Port: 1, Timeout: time.Second})

	job := &domain.EmailJob{Recipient: "customer@example.co.uk", Subject: "hello"}
	result, err := c.Send(context.Background(), job)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "smtp connect failed")
	assert.Empty(t, result.MessageID)
}

func TestClient_Send_ContextCancelled(t *testing.T) {
	c := NewClient(Config{Host: "mail.example.com", Port: 465, Timeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, &domain.EmailJob{Recipient: "customer@example.co.uk"})
	assert.Error(t, err)
}
