package commentservice

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type ModerationConfig struct {
	AutoApproveThreshold int
	AutoRejectThreshold  int
	// BannedTerms are matched case-insensitively against content and author name.
	BannedTerms []string
	MaxLinks    int
}

func DefaultModerationConfig() ModerationConfig {
	return ModerationConfig{
		AutoApproveThreshold: 70,
		AutoRejectThreshold:  20,
		BannedTerms:          []string{"casino", "viagra", "crypto giveaway", "loan offer", "escort"},
		MaxLinks:             2,
	}
}

type ModerationInput struct {
	AuthorName  string
	AuthorEmail string
	Content     string
	Rating      *int
	BannedTerms []string
	MaxLinks    int
}

const (
	baseScore        = 60
	repeatedRunLimit = 5
)

var linkPattern = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)

// ComputeModerationScore scores a comment from 0 (certain spam) to 100 (clean). It depends only on its input.
func ComputeModerationScore(in ModerationInput) int {
	score := baseScore
	content := strings.TrimSpace(in.Content)
	lower := strings.ToLower(content)
	name := strings.ToLower(in.AuthorName)

	switch n := utf8.RuneCountInString(content); {
	case n < 10:
		score -= 25
	case n < 30:
		score -= 10
	case n >= 200:
		score += 15
	case n >= 80:
		score += 10
	}

	for _, term := range in.BannedTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.Contains(lower, term) || strings.Contains(name, term) {
			score -= 50
		}
	}

	switch links := len(linkPattern.FindAllStringIndex(content, -1)); {
	case links == 0:
		score += 10
	case links > in.MaxLinks:
		score -= 40
	default:
		score -= 10 * links
	}

	if linkPattern.MatchString(in.AuthorName) {
		score -= 30
	}

	if longestRun(content) >= repeatedRunLimit {
		score -= 15
	}

	if shouting(content) {
		score -= 20
	}

	if in.AuthorEmail != "" && EmailRX.MatchString(in.AuthorEmail) {
		score += 5
	}

	if in.Rating != nil {
		score += 5
	}

	return max(0, min(100, score))
}

// Disposition maps a score to a status. autoApproved is true only for heuristic approval.
func (c ModerationConfig) Disposition(score int) (status Status, autoApproved bool) {
	switch {
	case score >= c.AutoApproveThreshold:
		return StatusApproved, true
	case score <= c.AutoRejectThreshold:
		return StatusRejected, false
	default:
		return StatusPending, false
	}
}

// longestRun returns the length of the longest run of one repeated non-space rune.
func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range s {
		if r == prev && !unicode.IsSpace(r) {
			run++
		} else {
			run = 1
		}
		prev = r
		longest = max(longest, run)
	}

	return longest
}

// shouting reports mostly upper case text with enough letters to judge.
func shouting(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}

	return letters >= 20 && upper*10 > letters*7
}
