package api

import (
	"context"
	"time"

	"github.com/localspot/localspot-go/cache"
	"github.com/localspot/localspot-go/client"
)

// Business is a directory entry. Optional attributes are pointers so a
// missing field is distinguishable from an empty one.
type Business struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Rating      float64 `json:"rating"`
	Address     *string `json:"address,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

const businessesCacheKey = "businesses"

// FetchBusinesses lists all businesses.
func FetchBusinesses(ctx context.Context, c *client.Client) ([]Business, error) {
	var businesses []Business
	if err := c.Get(ctx, "/businesses", &businesses); err != nil {
		return nil, err
	}
	return businesses, nil
}

// FetchBusiness retrieves a single business by ID.
func FetchBusiness(ctx context.Context, c *client.Client, id string) (*Business, error) {
	var business Business
	if err := c.Get(ctx, "/businesses/"+id, &business); err != nil {
		return nil, err
	}
	return &business, nil
}

// FetchBusinessesCached serves the business list through the TTL cache:
// a valid cached copy is returned without a network call; otherwise the list
// is fetched and cached for ttl. On a fetch failure with a cold cache the
// error propagates, so the UI can fall back to its own empty state.
func FetchBusinessesCached(ctx context.Context, c *client.Client, cc *cache.Cache, ttl time.Duration) ([]Business, error) {
	var cached []Business
	if cc.Get(ctx, businessesCacheKey, &cached) {
		return cached, nil
	}

	businesses, err := FetchBusinesses(ctx, c)
	if err != nil {
		return nil, err
	}
	// A cache write failure is not a fetch failure.
	_ = cc.Set(ctx, businessesCacheKey, businesses, ttl)
	return businesses, nil
}
