package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/internal/notification/models"
)

type captured struct {
	to, subject, body string
}

type captureSender struct{ sent []captured }

func (c *captureSender) Send(_ context.Context, to, subject, body string) error {
	c.sent = append(c.sent, captured{to, subject, body})
	return nil
}

func TestSendVerificationCode(t *testing.T) {
	sender := &captureSender{}
	m := NewMailer(sender, "Grievance")

	require.NoError(t, m.SendVerificationCode(context.Background(), "sara@example.com", "Sara", "482913", time.Hour))
	require.Len(t, sender.sent, 1)
	got := sender.sent[0]
	assert.Equal(t, "sara@example.com", got.to)
	assert.Equal(t, "Verify your email address", got.subject)
	assert.Contains(t, got.body, "Hello Sara,")
	assert.Contains(t, got.body, "482913")
	assert.Contains(t, got.body, "expire in 60 minutes")
}

func TestSendMessage(t *testing.T) {
	sender := &captureSender{}
	m := NewMailer(sender, "")

	err := m.SendMessage(context.Background(),
		models.Recipient{Email: "ali@example.com", Name: "Ali Hasan"},
		&models.Mail{
			Subject: "Complaint Status Updated",
			Lines:   []string{"Your complaint status has been updated.", "New Status: Finished"},
			Action:  "View Complaint",
			URL:     "http://localhost/complaints/CMP-2025-000001",
		})
	require.NoError(t, err)
	body := sender.sent[0].body
	assert.True(t, strings.HasPrefix(body, "Hello Ali Hasan!"))
	assert.Contains(t, body, "New Status: Finished")
	assert.Contains(t, body, "View Complaint: http://localhost/complaints/CMP-2025-000001")
	assert.Contains(t, body, "Regards,\nGrievance")
}

func TestCompose(t *testing.T) {
	msg := string(compose("noreply@gov.example", "a@example.com", "Hello", "line one\nline two"))
	assert.Contains(t, msg, "Subject: Hello\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "line one\r\nline two"))
}
