package commentservice

import (
	"regexp"
	"strings"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
)

const (
	MaxContentLength = 2000
	// UnknownPostMessage is the blog_slug validation message for a slug with no post behind it.
	UnknownPostMessage = "unknown post"
)

var (
	EmailRX = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	SlugRX  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)
)

func validateSlug(v *common.Validator, slug string) {
	v.Check(slug != "", "blog_slug", "must be provided")
	v.Check(len(slug) <= 255, "blog_slug", "must not be more than 255 characters long")
	v.Check(slug == "" || SlugRX.MatchString(slug), "blog_slug", "must only contain letters, numbers, dashes and underscores")
}

func validateAuthorName(v *common.Validator, name string) {
	name = strings.TrimSpace(name)
	v.Check(name != "", "author_name", "must be provided")
	v.Check(v.CheckRuneLength(name, 2, 100), "author_name", "must be between 2 and 100 characters long")
}

func validateAuthorEmail(v *common.Validator, email string) {
	if email == "" {
		return
	}
	v.Check(len(email) <= 255, "author_email", "must not be more than 255 characters long")
	v.Check(EmailRX.MatchString(email), "author_email", "must be a valid email address")
}

// validateContent checks the raw length and that something survives sanitizing.
func validateContent(v *common.Validator, raw, sanitized string) {
	v.Check(strings.TrimSpace(raw) != "" && sanitized != "", "content", "must be provided")
	v.Check(v.CheckRuneLength(raw, 0, MaxContentLength), "content", "must not be more than 2000 characters long")
}

func validateRating(v *common.Validator, rating *int) {
	if rating == nil {
		return
	}
	v.Check(*rating >= 1 && *rating <= 5, "rating", "must be between 1 and 5")
}

func validateSourceIP(v *common.Validator, ip string) {
	v.Check(ip != "", "source_ip", "must be provided")
}

func validateID(v *common.Validator, id int64) {
	v.Check(id > 0, "id", "must be greater than zero")
}

func validateVoter(v *common.Validator, voter string) {
	v.Check(voter != "", "voter", "must be provided")
	v.Check(len(voter) <= 128, "voter", "must not be more than 128 characters long")
}

func validateVoteKind(v *common.Validator, kind VoteKind) {
	v.Check(kind == VoteLike || kind == VoteHelpful, "kind", "must be like or helpful")
}

func parseSort(v *common.Validator, sort string) SortOrder {
	switch SortOrder(sort) {
	case "":
		return SortRecent
	case SortRecent, SortHelpful, SortRating, SortLikes:
		return SortOrder(sort)
	}

	v.AddError("sort", "must be one of recent, helpful, rating or likes")
	return SortRecent
}
