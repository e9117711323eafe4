package api

import (
	"context"
	"strings"

	"github.com/localspot/localspot-go/client"
)

// The backend proxies the AI provider; the app never holds a provider key.

const (
	summarizeMaxReviews = 12
	suggestMinComment   = 24
	suggestMaxTags      = 8
)

type summarizeRequest struct {
	Reviews []string `json:"reviews"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type suggestTagsRequest struct {
	Comment string `json:"comment"`
}

type suggestTagsResponse struct {
	Tags []string `json:"tags"`
}

// SummarizeReviews asks the backend for a short summary of review texts.
// Inputs are trimmed and de-duplicated; fewer than two distinct reviews is
// not worth a round trip and yields an empty summary.
func SummarizeReviews(ctx context.Context, c *client.Client, reviews []string) (string, error) {
	seen := make(map[string]bool, len(reviews))
	unique := make([]string, 0, len(reviews))
	for _, review := range reviews {
		trimmed := strings.TrimSpace(review)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		unique = append(unique, trimmed)
		if len(unique) == summarizeMaxReviews {
			break
		}
	}
	if len(unique) < 2 {
		return "", nil
	}

	var resp summarizeResponse
	if err := c.Post(ctx, "/ai/summarize", summarizeRequest{Reviews: unique}, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Summary), nil
}

// SuggestTags asks the backend for tag suggestions based on a draft comment.
// Short comments are skipped locally.
func SuggestTags(ctx context.Context, c *client.Client, comment string) ([]string, error) {
	clean := strings.TrimSpace(comment)
	if len(clean) < suggestMinComment {
		return nil, nil
	}

	var resp suggestTagsResponse
	if err := c.Post(ctx, "/ai/suggest-tags", suggestTagsRequest{Comment: clean}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Tags) > suggestMaxTags {
		resp.Tags = resp.Tags[:suggestMaxTags]
	}
	return resp.Tags, nil
}
