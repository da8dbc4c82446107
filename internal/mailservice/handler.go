package mailservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"golang.org/x/exp/rand"
)

const pendingCommentTemplate = "comment_pending.html"

func NewMailService(mb common.MessageConsumer, host, username, password, sender, moderator string, port int, logger *slog.Logger) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:        mb,
		m:         NewMailer(host, port, username, password, sender, NewTemplate()),
		moderator: moderator,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NotifyPendingComments mails the moderator for every comment.pending event until Close is called.
func (s *MailService) NotifyPendingComments() {
	msgs, err := s.mb.Consume(common.CommentPendingKey, common.CommentExchange, common.CommentPendingQueue)
	if err != nil {
		s.logger.Error("could not consume message", slog.String("error", err.Error()))
		return
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var payload PendingComment
				err := json.Unmarshal(msg.Body, &payload)
				if err != nil {
					s.logger.Error("could not unmarshal message", slog.String("error", err.Error()))
					msg.Ack(false)
					continue
				}

				if s.moderator == "" {
					s.logger.Info("no moderator address configured", slog.Int64("comment_id", payload.CommentID))
					msg.Ack(false)
					continue
				}

				// using exponential backoff with jitter
				const maxRetries = 5
				const baseDelay = 500 * time.Millisecond

				var attempt int
				for attempt = 0; attempt < maxRetries; attempt++ {
					err = s.m.send(s.moderator, payload, pendingCommentTemplate)
					if err == nil {
						s.logger.Info("moderator notified", slog.Int64("comment_id", payload.CommentID))
						msg.Ack(false)
						break
					}

					delay := time.Duration(rand.Int63n(int64(baseDelay) << uint(attempt)))
					s.logger.Info("delaying moderator email", slog.Int64("comment_id", payload.CommentID), slog.Int("attempt", attempt), slog.Duration("delay", delay))
					time.Sleep(delay)
				}

				if attempt == maxRetries {
					s.logger.Error("could not send moderator email", slog.Int64("comment_id", payload.CommentID))
					msg.Ack(false)
				}

			case <-s.ctx.Done():
				s.logger.Info("stopping NotifyPendingComments due to context cancellation")
				return
			}
		}
	}()
}

func (s *MailService) Close() {
	s.cancel()
}
