package mailservice

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-mail/mail/v2"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

type MockTemplate struct {
	mock.Mock
}

func (m *MockTemplate) ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error) {
	args := m.Called(name, data)
	return args.Get(0).(*bytes.Buffer), args.Get(1).(*bytes.Buffer), args.Get(2).(*bytes.Buffer), args.Error(3)
}

type MockDialer struct {
	mock.Mock
}

func (d *MockDialer) DialAndSend(m ...*mail.Message) error {
	args := d.Called(m)
	return args.Error(0)
}

type MockMailer struct {
	mu        sync.Mutex
	recipient string
	data      any
	failures  int
}

func (m *MockMailer) send(recipient string, data any, templateFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures > 0 {
		m.failures--
		return fmt.Errorf("smtp unavailable")
	}

	m.recipient = recipient
	m.data = data
	return nil
}

func (m *MockMailer) Sent() (string, any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.recipient, m.data
}

type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *MockLogger) Error(msg string, args ...any) { l.record(msg) }
func (l *MockLogger) Info(msg string, args ...any)  { l.record(msg) }

func (l *MockLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
}

func (l *MockLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.messages...)
}

type MockMessageConsumer struct {
	mock.Mock
	Body string
}

func (m *MockMessageConsumer) Consume(key common.BindingKey, exchange common.Exchange, queue common.Queue) (<-chan amqp.Delivery, error) {
	m.Called(key, exchange, queue)
	msgsChan := make(chan amqp.Delivery)

	go func() {
		defer close(msgsChan)

		msgsChan <- amqp.Delivery{Body: []byte(m.Body)}
	}()

	return msgsChan, nil
}
