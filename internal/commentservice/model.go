package commentservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

func newCommentModel(db *sql.DB) *CommentModel {
	return &CommentModel{db: db}
}

func (m *CommentModel) insert(ctx context.Context, c *Comment) error {
	query := `
		INSERT INTO comments (blog_slug, author_name, author_email, content, rating, moderation_score, status, auto_approved, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return m.db.QueryRowContext(ctx, query,
		c.BlogSlug, c.AuthorName, c.AuthorEmail, c.Content, c.Rating, c.ModerationScore, c.Status, c.AutoApproved, c.IPAddress,
	).Scan(&c.ID, &c.CreatedAt)
}

// hitRateLimit counts one submission for ip in the window starting at windowStart and returns the new count.
// The unique (ip_address, window_start) pair makes concurrent hits add up instead of racing.
func (m *CommentModel) hitRateLimit(ctx context.Context, ip string, windowStart time.Time) (int, error) {
	query := `
		INSERT INTO comment_rate_limits (ip_address, window_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (ip_address, window_start) DO UPDATE SET count = comment_rate_limits.count + 1
		RETURNING count`

	var count int
	err := m.db.QueryRowContext(ctx, query, ip, windowStart).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (m *CommentModel) purgeRateLimits(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM comment_rate_limits
		WHERE window_start < $1`

	res, err := m.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

var sortClauses = map[SortOrder]string{
	SortRecent:  "created_at DESC, id DESC",
	SortHelpful: "helpful_count DESC, created_at DESC, id DESC",
	SortRating:  "rating DESC NULLS LAST, created_at DESC, id DESC",
	SortLikes:   "likes_count DESC, created_at DESC, id DESC",
}

// listApproved returns up to limit approved comments for slug. Only the fixed clauses in sortClauses reach the query.
func (m *CommentModel) listApproved(ctx context.Context, slug string, sort SortOrder, limit int) ([]Comment, error) {
	order, ok := sortClauses[sort]
	if !ok {
		order = sortClauses[SortRecent]
	}

	query := `
		SELECT id, blog_slug, author_name, content, rating, likes_count, helpful_count, status, auto_approved, created_at
		FROM comments
		WHERE blog_slug = $1 AND status = 'approved'
		ORDER BY ` + order + `
		LIMIT $2`

	rows, err := m.db.QueryContext(ctx, query, slug, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		var rating sql.NullInt64
		err := rows.Scan(&c.ID, &c.BlogSlug, &c.AuthorName, &c.Content, &rating, &c.Likes, &c.HelpfulCount, &c.Status, &c.AutoApproved, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		if rating.Valid {
			r := int(rating.Int64)
			c.Rating = &r
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}

func (m *CommentModel) stats(ctx context.Context, slug string) (*CommentStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(likes_count), 0), AVG(rating)::float8
		FROM comments
		WHERE blog_slug = $1 AND status = 'approved'`

	var s CommentStats
	var avg sql.NullFloat64
	err := m.db.QueryRowContext(ctx, query, slug).Scan(&s.TotalComments, &s.TotalLikes, &avg)
	if err != nil {
		return nil, err
	}

	if avg.Valid {
		rounded := math.Round(avg.Float64*10) / 10
		s.AverageRating = &rounded
	}

	return &s, nil
}

var voteColumns = map[VoteKind]string{
	VoteLike:    "likes_count",
	VoteHelpful: "helpful_count",
}

// vote toggles the (id, voter, kind) vote inside one transaction and returns the new counter and the blog slug.
// A concurrent insert of the same vote fails the unique constraint and is reported as applied without counting twice.
func (m *CommentModel) vote(ctx context.Context, id int64, voter string, kind VoteKind) (*VoteResult, string, error) {
	column, ok := voteColumns[kind]
	if !ok {
		return nil, "", fmt.Errorf("unknown vote kind %q", kind)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback()

	var slug string
	var count int
	query := `SELECT blog_slug, ` + column + ` FROM comments WHERE id = $1 AND status = 'approved'`
	err = tx.QueryRowContext(ctx, query, id).Scan(&slug, &count)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, "", ErrCommentNotFound
		default:
			return nil, "", err
		}
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM comment_votes
		WHERE comment_id = $1 AND voter_identity = $2 AND kind = $3`, id, voter, kind)
	if err != nil {
		return nil, "", err
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return nil, "", err
	}

	result := &VoteResult{}
	if removed > 0 {
		query = `UPDATE comments SET ` + column + ` = GREATEST(` + column + ` - 1, 0), updated_at = NOW() WHERE id = $1 RETURNING ` + column
		if err := tx.QueryRowContext(ctx, query, id).Scan(&result.NewCount); err != nil {
			return nil, "", err
		}
	} else {
		var voteID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO comment_votes (comment_id, voter_identity, kind)
			VALUES ($1, $2, $3)
			RETURNING id`, id, voter, kind).Scan(&voteID)
		switch {
		case common.UniqueViolation(err, "comment_votes_unique"):
			// Another request recorded the same vote first; the aborted transaction is rolled back.
			return &VoteResult{NewCount: count, DidApply: true}, slug, nil
		case err != nil:
			return nil, "", err
		default:
			query = `UPDATE comments SET ` + column + ` = ` + column + ` + 1, updated_at = NOW() WHERE id = $1 RETURNING ` + column
			if err := tx.QueryRowContext(ctx, query, id).Scan(&result.NewCount); err != nil {
				return nil, "", err
			}
			result.DidApply = true
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, "", err
	}

	return result, slug, nil
}
