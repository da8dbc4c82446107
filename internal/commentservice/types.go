package commentservice

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
)

type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

type VoteKind string

const (
	VoteLike    VoteKind = "like"
	VoteHelpful VoteKind = "helpful"
)

type SortOrder string

const (
	SortRecent  SortOrder = "recent"
	SortHelpful SortOrder = "helpful"
	SortRating  SortOrder = "rating"
	SortLikes   SortOrder = "likes"
)

type Comment struct {
	ID              int64     `json:"id"`
	BlogSlug        string    `json:"blogSlug"`
	AuthorName      string    `json:"authorName"`
	AuthorEmail     *string   `json:"-"`
	Content         string    `json:"content"`
	Rating          *int      `json:"rating,omitempty"`
	Likes           int       `json:"likes"`
	HelpfulCount    int       `json:"helpfulCount"`
	ModerationScore int       `json:"-"`
	Status          Status    `json:"status"`
	AutoApproved    bool      `json:"autoApproved"`
	IPAddress       string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}

type SubmitCommentRequest struct {
	BlogSlug     string `json:"-"`
	AuthorName   string `json:"authorName"`
	AuthorEmail  string `json:"authorEmail"`
	Content      string `json:"content"`
	Rating       *int   `json:"rating"`
	CaptchaToken string `json:"captchaToken"`
	SourceIP     string `json:"-"`
}

type SubmitResult struct {
	ID      int64  `json:"id"`
	Pending bool   `json:"pending"`
	Status  Status `json:"-"`
}

type CommentStats struct {
	TotalComments int      `json:"totalComments"`
	TotalLikes    int      `json:"totalLikes"`
	AverageRating *float64 `json:"averageRating"`
}

type VoteResult struct {
	NewCount int
	DidApply bool
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// SlugChecker reports whether a post exists. Comments only hold the slug, never the post itself.
type SlugChecker interface {
	Exists(ctx context.Context, slug string) (bool, error)
}

type CommentModel struct {
	db *sql.DB
}

type CommentService struct {
	m          *CommentModel
	c          *common.Cache
	mb         common.MessageProducer
	captcha    CaptchaVerifier
	slugs      SlugChecker
	moderation ModerationConfig
	rateLimit  RateLimitConfig
	logger     *slog.Logger
	now        func() time.Time
}

// pendingEvent is published on comment.pending for moderator notification.
type pendingEvent struct {
	CommentID  int64  `json:"commentId"`
	BlogSlug   string `json:"blogSlug"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
	Score      int    `json:"score"`
}
