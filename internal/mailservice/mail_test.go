package mailservice

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSendEmail(t *testing.T) {
	testCases := []struct {
		name      string
		recipient string
		dialErr   error
		expectErr bool
	}{
		{
			name:      "delivered",
			recipient: "moderator@example.com",
		},
		{
			name:      "several recipients",
			recipient: "moderator@example.com, sales@example.com",
		},
		{
			name:      "smtp failure",
			recipient: "moderator@example.com",
			dialErr:   errors.New("connection refused"),
			expectErr: true,
		},
	}

	t.Run("empty recipient", func(t *testing.T) {
		mailer := Mail{dialer: new(MockDialer), parser: new(MockTemplate)}
		assert.Error(t, mailer.send(" , ", nil, pendingCommentTemplate))
	})

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockParser := new(MockTemplate)
			mockDialer := new(MockDialer)

			mailer := Mail{
				dialer: mockDialer,
				parser: mockParser,
				sender: "sender@example.com",
			}

			payload := PendingComment{CommentID: 1, BlogSlug: "hill-crest-update"}

			subject := bytes.NewBufferString("Test Subject")
			plainBody := bytes.NewBufferString("Test Plain Body")
			htmlBody := bytes.NewBufferString("Test HTML Body")
			mockParser.On("ParseTemplate", pendingCommentTemplate, payload).Return(subject, plainBody, htmlBody, nil)
			mockDialer.On("DialAndSend", mock.AnythingOfType("[]*mail.Message")).Return(tc.dialErr)

			err := mailer.send(tc.recipient, payload, pendingCommentTemplate)
			assert.Equal(t, tc.expectErr, err != nil)

			mockParser.AssertExpectations(t)
			mockDialer.AssertExpectations(t)
		})
	}
}
