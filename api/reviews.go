package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/localspot/localspot-go/client"
	"github.com/localspot/localspot-go/internal/sanitize"
)

// Review is a user-submitted rating with an optional comment.
type Review struct {
	BusinessID string `json:"businessId"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
}

// Photo is an image attached to a review.
type Photo struct {
	Name    string
	Content []byte
}

// CreateReview submits a review as JSON. The comment is sanitized locally;
// the backend validates again.
func CreateReview(ctx context.Context, c *client.Client, review Review) error {
	if err := validateReview(review); err != nil {
		return err
	}
	review.Comment = sanitize.Input(review.Comment)
	return c.Post(ctx, "/businesses/"+review.BusinessID+"/reviews", review, nil)
}

// CreateReviewWithPhotos submits a review with photo attachments as a
// multipart request.
func CreateReviewWithPhotos(ctx context.Context, c *client.Client, review Review, photos []Photo) error {
	if err := validateReview(review); err != nil {
		return err
	}

	fields := map[string]string{
		"rating":  strconv.Itoa(review.Rating),
		"comment": sanitize.Input(review.Comment),
	}
	files := make([]client.File, 0, len(photos))
	for i, photo := range photos {
		files = append(files, client.File{
			Field:   fmt.Sprintf("photo%d", i),
			Name:    photo.Name,
			Content: photo.Content,
		})
	}
	return c.PostMultipart(ctx, "/businesses/"+review.BusinessID+"/reviews", fields, files, nil)
}

func validateReview(review Review) error {
	if review.BusinessID == "" {
		return fmt.Errorf("review: business ID is required")
	}
	if review.Rating < 1 || review.Rating > 5 {
		return fmt.Errorf("review: rating %d out of range 1-5", review.Rating)
	}
	return nil
}
