package reddit

import (
	"encoding/json"
	"fmt"

	"github.com/blackmichael/disc-sheets/internal/domain"
)

// Thing kinds used by the listing endpoints.
const (
	kindComment = "t1"
	kindLink    = "t3"
	kindMore    = "more"
)

// listing is the envelope of every paginated response.
type listing struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	After    string  `json:"after"`
	Children []thing `json:"children"`
}

// thing is a single listing child; Data is decoded once Kind is known.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// linkData is the submission payload of a t3 thing.
type linkData struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Selftext        string  `json:"selftext"`
	URL             string  `json:"url"`
	Permalink       string  `json:"permalink"`
	CreatedUTC      float64 `json:"created_utc"`
	NumComments     int     `json:"num_comments"`
	Score           int     `json:"score"`
	Author          string  `json:"author"`
	AuthorFlairText *string `json:"author_flair_text"`
}

// commentData is the payload of a t1 thing.
type commentData struct {
	ID     string `json:"id"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

func parseLink(t thing) (domain.RawPost, error) {
	var d linkData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return domain.RawPost{}, fmt.Errorf("unmarshal link: %w", err)
	}

	post := domain.RawPost{
		ID:          d.ID,
		Title:       d.Title,
		SelfText:    d.Selftext,
		URL:         d.URL,
		Permalink:   permalinkBase + d.Permalink,
		CreatedUTC:  d.CreatedUTC,
		NumComments: d.NumComments,
		Score:       d.Score,
	}
	if !domain.IsDeletedAuthor(d.Author) {
		post.Author = &domain.RawAuthor{Name: d.Author}
		if d.AuthorFlairText != nil {
			post.Author.FlairText = *d.AuthorFlairText
		}
	}
	return post, nil
}

func parseComments(l listing) ([]domain.RawComment, error) {
	comments := make([]domain.RawComment, 0, len(l.Data.Children))
	for _, t := range l.Data.Children {
		if t.Kind != kindComment {
			continue
		}
		var d commentData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return nil, fmt.Errorf("unmarshal comment: %w", err)
		}
		comments = append(comments, domain.RawComment{ID: d.ID, Body: d.Body})
	}
	return comments, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

type meResponse struct {
	Name string `json:"name"`
}
