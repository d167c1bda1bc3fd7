package blog

import (
	"strings"
	"unicode"
)

const wordsPerMinute = 200

// Slugify turns a post title into a URL slug: lowercased, everything
// outside letters, digits and hyphens dropped, whitespace runs replaced
// by a single hyphen. Running it over its own output changes nothing.
func Slugify(title string) string {
	title = strings.ToLower(title)
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, title)

	slug := strings.Join(strings.Fields(cleaned), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

// EstimateReadTime returns the reading time in minutes assuming 200
// words per minute, rounded up. Empty or whitespace-only content is 0.
func EstimateReadTime(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

// NormalizeTags trims every tag, drops the empty ones and removes
// duplicates, keeping first occurrence order. Comparison is case
// sensitive, so "Go" and "go" remain distinct tags.
func NormalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}
	return normalized
}

// JoinTags normalizes the tags and joins them into the comma separated
// form the post table stores.
func JoinTags(tags []string) string {
	return strings.Join(NormalizeTags(tags), ",")
}

// SplitTags is the inverse of JoinTags for stored values.
func SplitTags(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(joined, ","))
}
