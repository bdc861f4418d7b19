package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// deletedAuthor is the name the forum reports for removed accounts.
const deletedAuthor = "[deleted]"

// Author is the forum account that created a post.
type Author struct {
	// Name is the account name.
	Name string `msgpack:"name"`

	// FlairText is the raw flair string shown next to the name, if any.
	FlairText string `msgpack:"flair_text,omitempty"`

	// FlairRank is derived from FlairText by ParseFlairRank. It is set only by
	// NewAuthor and is always >= 0.
	FlairRank int `msgpack:"flair_rank"`
}

// NewAuthor builds an Author and derives its flair rank.
func NewAuthor(name, flairText string) *Author {
	return &Author{
		Name:      name,
		FlairText: flairText,
		FlairRank: ParseFlairRank(flairText),
	}
}

// ParseFlairRank extracts the exchange count from flair text. The count is the
// first word when it is all digits ("12 exchanges"); otherwise it is the
// second word of whatever follows the first word ("Trades | 12"). Anything
// else, including negative numbers, yields 0.
func ParseFlairRank(flairText string) int {
	first, rest, ok := splitFirstWord(flairText)
	if !ok {
		return 0
	}
	if isDigits(first) {
		return nonNegativeAtoi(first)
	}

	restFields := strings.Fields(rest)
	if len(restFields) < 2 {
		return 0
	}
	return nonNegativeAtoi(restFields[1])
}

func splitFirstWord(s string) (string, string, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return "", "", false
	}
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, "", true
	}
	return s[:end], s[end:], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nonNegativeAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Post is a forum submission as observed during a search.
type Post struct {
	// ID is the forum's stable identifier for the post.
	ID string `msgpack:"id"`

	// Title is the post title.
	Title string `msgpack:"title"`

	// CreatedAt is the creation time in UTC.
	CreatedAt time.Time `msgpack:"created_at"`

	// Permalink is the canonical URL of the post.
	Permalink string `msgpack:"permalink"`

	// CommentCount is the number of comments at observation time.
	CommentCount int `msgpack:"comment_count"`

	// Score is the post score at observation time.
	Score int `msgpack:"score"`

	// Author is nil when the account was deleted.
	Author *Author `msgpack:"author,omitempty"`
}

// SheetPost is a Post enriched with the shared spreadsheet it links to.
type SheetPost struct {
	Post `msgpack:",inline"`

	// DocumentID is the spreadsheet identifier. Empty when no document was
	// found; set if and only if DocumentURL is set.
	DocumentID string `msgpack:"document_id,omitempty"`

	// DocumentURL is the cleaned sharing link the id was resolved from.
	DocumentURL string `msgpack:"document_url,omitempty"`

	// DownloadedAt is set together with RawGrid once a download completed.
	DownloadedAt *time.Time `msgpack:"downloaded_at,omitempty"`

	// RawGrid is the JSON encoded Grid. Empty until a download completed.
	RawGrid string `msgpack:"raw_grid,omitempty"`
}

// HasDocument reports whether the post references a spreadsheet.
func (p *SheetPost) HasDocument() bool {
	return p.DocumentID != ""
}

// AttachDocument links the post to a resolved spreadsheet.
func (p *SheetPost) AttachDocument(documentID, documentURL string) {
	if documentID == "" || documentURL == "" {
		p.DocumentID, p.DocumentURL = "", ""
		return
	}
	p.DocumentID, p.DocumentURL = documentID, documentURL
}

// AttachGrid stores a completed download on the post.
func (p *SheetPost) AttachGrid(g *Grid, downloadedAt time.Time) error {
	encoded, err := g.Encode()
	if err != nil {
		return err
	}
	at := downloadedAt.UTC()
	p.RawGrid = encoded
	p.DownloadedAt = &at
	return nil
}

// Grid decodes the stored grid payload.
func (p *SheetPost) Grid() (*Grid, error) {
	if p.RawGrid == "" {
		return nil, ErrNotFound
	}
	return DecodeGrid(p.RawGrid)
}

// RawPost is a post as returned by the forum client before parsing.
type RawPost struct {
	ID          string
	Title       string
	SelfText    string
	URL         string
	Permalink   string
	CreatedUTC  float64
	NumComments int
	Score       int

	// Author is nil when the forum reports the account as deleted.
	Author *RawAuthor

	// Comments is nil when the listing has not been loaded yet.
	Comments []RawComment
}

// RawAuthor is the author block of a RawPost.
type RawAuthor struct {
	Name      string
	FlairText string
}

// RawComment is a single top-level comment of a RawPost.
type RawComment struct {
	ID   string
	Body string
}

// IsDeletedAuthor reports whether name is the placeholder used for removed
// accounts.
func IsDeletedAuthor(name string) bool {
	return name == "" || name == deletedAuthor
}

// CreatedAt converts the epoch seconds timestamp into a UTC time.
func (p *RawPost) CreatedAt() time.Time {
	sec, frac := math.Modf(p.CreatedUTC)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

// NewSheetPost builds the parsed record for a raw post. Document fields are
// left empty.
func NewSheetPost(raw *RawPost) SheetPost {
	var author *Author
	if raw.Author != nil && !IsDeletedAuthor(raw.Author.Name) {
		author = NewAuthor(raw.Author.Name, raw.Author.FlairText)
	}

	return SheetPost{
		Post: Post{
			ID:           raw.ID,
			Title:        raw.Title,
			CreatedAt:    raw.CreatedAt(),
			Permalink:    raw.Permalink,
			CommentCount: raw.NumComments,
			Score:        raw.Score,
			Author:       author,
		},
	}
}
