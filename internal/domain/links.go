package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// SharingBaseURL is the prefix every shared spreadsheet link starts with.
const SharingBaseURL = "https://docs.google.com/"

// documentIDRules are tried in order before the generic extractor. The
// generic "/spreadsheets/d/{id}" rule would capture "e" or nothing for these
// link shapes.
var documentIDRules = []*regexp.Regexp{
	regexp.MustCompile(`/spreadsheets/d/e/([a-zA-Z0-9-_]+)`),
	regexp.MustCompile(`/spreadsheets/u/0/d/([a-zA-Z0-9-_]+)`),
}

var (
	genericPathID  = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)
	genericQueryID = regexp.MustCompile(`key=([^&#]+)`)
	bareID         = regexp.MustCompile(`^[a-zA-Z0-9-_]{25,}$`)
)

// CommentLoader fetches the comments of a post on demand.
type CommentLoader func(ctx context.Context, postID string) ([]RawComment, error)

// FindDocumentURL looks for a sharing link in the post title, then the
// self-text, then the link URL when there is no self-text, then each comment
// in listing order. Comments are loaded through load only when post.Comments
// is nil. Returns ErrNotFound when no link is present.
func FindDocumentURL(ctx context.Context, post *RawPost, load CommentLoader) (string, error) {
	if strings.Contains(post.Title, SharingBaseURL) {
		return CleanURL(post.Title), nil
	}
	if post.SelfText != "" && strings.Contains(post.SelfText, SharingBaseURL) {
		return CleanURL(post.SelfText), nil
	}
	if post.SelfText == "" && strings.Contains(post.URL, SharingBaseURL) {
		return post.URL, nil
	}

	comments := post.Comments
	if comments == nil && load != nil {
		loaded, err := load(ctx, post.ID)
		if err != nil {
			return "", fmt.Errorf("load comments: %w", err)
		}
		comments = loaded
	}
	for _, c := range comments {
		if strings.Contains(c.Body, SharingBaseURL) {
			return CleanURL(c.Body), nil
		}
	}

	return "", ErrNotFound
}

// CleanURL extracts the sharing link embedded in text and strips the
// markdown and escaping noise forum bodies add around it. Returns "" when
// text holds no link.
func CleanURL(text string) string {
	idx := strings.Index(text, SharingBaseURL)
	if idx < 0 {
		return ""
	}
	fields := strings.Fields(text[idx:])
	if len(fields) == 0 {
		return ""
	}

	u := fields[0]
	for {
		next := cleanOnce(u)
		if next == u {
			return u
		}
		u = next
	}
}

// cleanOnce applies the strip steps in their required order. The bracket cut
// comes first because the text after "]" may hold a stray ")".
func cleanOnce(u string) string {
	if i := strings.Index(u, "]"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimSuffix(u, ".")
	u = strings.ReplaceAll(u, `\`, "")
	u = strings.ReplaceAll(u, ")", "")
	return u
}

// ResolveDocumentID derives the spreadsheet id from a sharing link. Returns
// ErrNotFound for links that do not point at a spreadsheet.
func ResolveDocumentID(url string) (string, error) {
	for _, rule := range documentIDRules {
		if m := rule.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	return extractDocumentID(url)
}

// extractDocumentID understands edit, view-only and legacy key links as well
// as bare ids.
func extractDocumentID(url string) (string, error) {
	if m := genericPathID.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	if m := genericQueryID.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	if bareID.MatchString(url) {
		return url, nil
	}
	return "", fmt.Errorf("%w: no spreadsheet key in %q", ErrNotFound, url)
}
