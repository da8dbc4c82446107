package commentservice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
)

const (
	listCacheTTL = 30 * time.Second
	listLimit    = 200
)

// NewCommentService wires the moderation pipeline. mb may be nil, in which case pending comments are not announced.
func NewCommentService(db *sql.DB, cache *common.Cache, mb common.MessageProducer, captcha CaptchaVerifier, slugs SlugChecker, moderation ModerationConfig, rateLimit RateLimitConfig, logger *slog.Logger) *CommentService {
	if rateLimit.Window <= 0 {
		rateLimit.Window = time.Hour
	}
	if rateLimit.Limit <= 0 {
		rateLimit.Limit = 5
	}

	return &CommentService{
		m:          newCommentModel(db),
		c:          cache,
		mb:         mb,
		captcha:    captcha,
		slugs:      slugs,
		moderation: moderation,
		rateLimit:  rateLimit,
		logger:     logger,
		now:        time.Now,
	}
}

// Submit runs a new comment through validation, CAPTCHA, rate limiting and scoring, then stores it.
// Validation always runs first so malformed submissions never reach the CAPTCHA provider.
func (s *CommentService) Submit(ctx context.Context, req *SubmitCommentRequest) (*SubmitResult, error) {
	req.AuthorName = strings.TrimSpace(req.AuthorName)
	req.AuthorEmail = strings.TrimSpace(req.AuthorEmail)

	content := sanitizeContent(req.Content)

	v := common.NewValidator()
	validateSlug(v, req.BlogSlug)
	validateAuthorName(v, req.AuthorName)
	validateAuthorEmail(v, req.AuthorEmail)
	validateContent(v, req.Content, content)
	validateRating(v, req.Rating)
	validateSourceIP(v, req.SourceIP)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	exists, err := s.slugs.Exists(ctx, req.BlogSlug)
	if err != nil {
		return nil, fmt.Errorf("could not check post: %w", err)
	}
	if !exists {
		v.AddError("blog_slug", UnknownPostMessage)
		return nil, v.ValidationError()
	}

	if err := s.captcha.Verify(ctx, req.CaptchaToken, req.SourceIP); err != nil {
		s.logger.Info("captcha rejected", slog.String("ip", req.SourceIP), slog.String("error", err.Error()))
		return nil, ErrCaptchaFailed
	}

	windowStart := s.now().UTC().Truncate(s.rateLimit.Window)
	count, err := s.m.hitRateLimit(ctx, req.SourceIP, windowStart)
	if err != nil {
		return nil, fmt.Errorf("could not record rate limit: %w", err)
	}
	if count > s.rateLimit.Limit {
		return nil, ErrRateLimited
	}

	score := ComputeModerationScore(ModerationInput{
		AuthorName:  req.AuthorName,
		AuthorEmail: req.AuthorEmail,
		Content:     content,
		Rating:      req.Rating,
		BannedTerms: s.moderation.BannedTerms,
		MaxLinks:    s.moderation.MaxLinks,
	})
	status, autoApproved := s.moderation.Disposition(score)

	c := &Comment{
		BlogSlug:        req.BlogSlug,
		AuthorName:      req.AuthorName,
		Content:         content,
		Rating:          req.Rating,
		ModerationScore: score,
		Status:          status,
		AutoApproved:    autoApproved,
		IPAddress:       req.SourceIP,
	}
	if req.AuthorEmail != "" {
		c.AuthorEmail = &req.AuthorEmail
	}

	if err := s.m.insert(ctx, c); err != nil {
		return nil, fmt.Errorf("could not store comment: %w", err)
	}

	switch status {
	case StatusApproved:
		s.invalidate(c.BlogSlug)
	case StatusPending:
		s.announcePending(ctx, c)
	}

	s.logger.Info("comment submitted",
		slog.Int64("id", c.ID),
		slog.String("slug", c.BlogSlug),
		slog.String("status", string(status)),
		slog.Int("score", score))

	return &SubmitResult{ID: c.ID, Pending: status != StatusApproved, Status: status}, nil
}

func (s *CommentService) announcePending(ctx context.Context, c *Comment) {
	if s.mb == nil {
		return
	}

	err := common.PublishJSON(ctx, s.mb, common.CommentPendingRoute, pendingEvent{
		CommentID:  c.ID,
		BlogSlug:   c.BlogSlug,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		Score:      c.ModerationScore,
	})
	if err != nil {
		s.logger.Error("could not publish pending comment event", slog.Int64("id", c.ID), slog.String("error", err.Error()))
	}
}

func (s *CommentService) invalidate(slug string) {
	s.c.DeletePrefix(common.CacheKeyCommentsPrefix(slug))
	s.c.Delete(common.CacheKeyCommentStats(slug))
}

// ListApproved returns the approved comments for slug. sort is one of recent, helpful, rating or likes; empty means recent.
func (s *CommentService) ListApproved(ctx context.Context, slug, sort string) ([]Comment, error) {
	v := common.NewValidator()
	validateSlug(v, slug)
	order := parseSort(v, sort)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	key := common.CacheKeyComments(slug, string(order))
	if cached, ok := s.c.Get(key); ok {
		if comments, ok := cached.([]Comment); ok {
			return comments, nil
		}
	}

	comments, err := s.m.listApproved(ctx, slug, order, listLimit)
	if err != nil {
		return nil, err
	}
	s.c.Set(key, comments, listCacheTTL)

	return comments, nil
}

// Stats aggregates approved comments only.
func (s *CommentService) Stats(ctx context.Context, slug string) (*CommentStats, error) {
	v := common.NewValidator()
	validateSlug(v, slug)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	key := common.CacheKeyCommentStats(slug)
	if cached, ok := s.c.Get(key); ok {
		if stats, ok := cached.(*CommentStats); ok {
			return stats, nil
		}
	}

	stats, err := s.m.stats(ctx, slug)
	if err != nil {
		return nil, err
	}
	s.c.Set(key, stats, listCacheTTL)

	return stats, nil
}

// Vote toggles a like or helpful vote: the first call from voter applies it, the next removes it.
func (s *CommentService) Vote(ctx context.Context, commentID int64, voter string, kind VoteKind) (*VoteResult, error) {
	v := common.NewValidator()
	validateID(v, commentID)
	validateVoter(v, voter)
	validateVoteKind(v, kind)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	result, slug, err := s.m.vote(ctx, commentID, voter, kind)
	if err != nil {
		return nil, err
	}
	s.invalidate(slug)

	return result, nil
}

// PurgeRateLimits deletes rate limit counters whose window started before the cutoff.
func (s *CommentService) PurgeRateLimits(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.m.purgeRateLimits(ctx, before)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("purged rate limit counters", slog.Int64("rows", n))
	}

	return n, nil
}

// RateLimitWindow is the configured submission window, used by callers scheduling purges.
func (s *CommentService) RateLimitWindow() time.Duration {
	return s.rateLimit.Window
}
