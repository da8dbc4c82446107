package common

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBroker(t *testing.T) {
	mb, err := NewMessageBroker(TestRabbitMQ(t))
	require.NoError(t, err)
	t.Cleanup(func() { mb.Close() })

	require.NoError(t, SetupCommentExchange(mb))
	require.NoError(t, SetupCommentExchange(mb))

	msgs, err := mb.Consume(CommentPendingKey, CommentExchange, CommentPendingQueue)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type event struct {
		CommentID int64  `json:"commentId"`
		BlogSlug  string `json:"blogSlug"`
	}
	require.NoError(t, PublishJSON(ctx, mb, CommentPendingRoute, event{CommentID: 1, BlogSlug: "hill-crest-update"}))

	select {
	case d := <-msgs:
		assert.JSONEq(t, `{"commentId":1,"blogSlug":"hill-crest-update"}`, string(d.Body))
		assert.Equal(t, "application/json", d.ContentType)
		assert.Equal(t, amqp.Persistent, d.DeliveryMode)
		assert.NotEmpty(t, d.MessageId)
		assert.NoError(t, d.Ack(false))
	case <-ctx.Done():
		t.Fatal("timed out waiting for the pending comment message")
	}
}

type recordingProducer struct {
	msg      []byte
	key      BindingKey
	exchange Exchange
	err      error
}

func (p *recordingProducer) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	p.msg, p.key, p.exchange = msg, key, exchange
	return p.err
}

func TestPublishJSON(t *testing.T) {
	testCases := []struct {
		name        string
		event       any
		publishErr  error
		expectedErr bool
		wantBody    string
	}{
		{
			name:     "encodes and routes",
			event:    map[string]any{"commentId": 7},
			wantBody: `{"commentId":7}`,
		},
		{
			name:        "unencodable event",
			event:       map[string]any{"ch": make(chan int)},
			expectedErr: true,
		},
		{
			name:        "publish failure",
			event:       map[string]any{"commentId": 7},
			publishErr:  errors.New("channel closed"),
			expectedErr: true,
			wantBody:    `{"commentId":7}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &recordingProducer{err: tc.publishErr}

			err := PublishJSON(context.Background(), p, CommentPendingRoute, tc.event)
			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if tc.wantBody == "" {
				assert.Nil(t, p.msg)
				return
			}
			assert.JSONEq(t, tc.wantBody, string(p.msg))
			assert.Equal(t, CommentPendingKey, p.key)
			assert.Equal(t, CommentExchange, p.exchange)
		})
	}
}
