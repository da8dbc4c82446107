package mailservice

import (
	"bytes"
	"context"
	"sync"

	"github.com/go-mail/mail/v2"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
)

type MailService struct {
	mb        common.MessageConsumer
	m         Mailer
	moderator string
	logger    MailLogger
	ctx       context.Context
	cancel    context.CancelFunc
}

// PendingComment is the comment.pending event body.
type PendingComment struct {
	CommentID  int64  `json:"commentId"`
	BlogSlug   string `json:"blogSlug"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
	Score      int    `json:"score"`
}

type MailLogger interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}

type Mail struct {
	mu     sync.Mutex
	dialer Dialer
	parser TemplateParser
	sender string
}

type Mailer interface {
	send(recipient string, data any, templateFile string) error
}

type Template struct {
	parsed sync.Map
}

type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type TemplateParser interface {
	ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error)
}
