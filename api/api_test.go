package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/localspot/localspot-go/api"
	"github.com/localspot/localspot-go/cache"
	"github.com/localspot/localspot-go/client"
	"github.com/localspot/localspot-go/internal/utils"
	"github.com/localspot/localspot-go/store/storefakes"
	"github.com/stretchr/testify/require"
)

func newBusinessServer(t *testing.T) (*client.Client, *int32) {
	t.Helper()

	var hits int32
	router := mux.NewRouter()
	router.HandleFunc("/businesses", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode([]api.Business{
			{ID: "b1", Name: "Corner Cafe", Category: "cafe", Rating: 4.5},
			{ID: "b2", Name: "Vinyl Records", Category: "shop", Rating: 3.9},
		})
	}).Methods(http.MethodGet)
	router.HandleFunc("/businesses/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Business{
			ID: mux.Vars(r)["id"], Name: "Corner Cafe", Category: "cafe", Rating: 4.5,
			Address: utils.Ptr("1 Main St"),
		})
	}).Methods(http.MethodGet)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return client.New(server.URL, time.Second), &hits
}

func TestFetchBusinesses(t *testing.T) {
	c, _ := newBusinessServer(t)

	businesses, err := api.FetchBusinesses(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, businesses, 2)
	require.Equal(t, "Corner Cafe", businesses[0].Name)
	require.Nil(t, businesses[0].Address)
}

func TestFetchBusinessByID(t *testing.T) {
	c, _ := newBusinessServer(t)

	business, err := api.FetchBusiness(context.Background(), c, "b7")
	require.NoError(t, err)
	require.Equal(t, "b7", business.ID)
	require.NotNil(t, business.Address)
	require.Equal(t, "1 Main St", *business.Address)
}

func TestFetchBusinessesCachedHitsNetworkOnce(t *testing.T) {
	ctx := context.Background()
	c, hits := newBusinessServer(t)
	cc := cache.New(storefakes.NewFakeStore())

	first, err := api.FetchBusinessesCached(ctx, c, cc, time.Hour)
	require.NoError(t, err)
	second, err := api.FetchBusinessesCached(ctx, c, cc, time.Hour)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(hits), "second read must be served from cache")
}

func TestCreateReviewSanitizesComment(t *testing.T) {
	var got api.Review
	router := mux.NewRouter()
	router.HandleFunc("/businesses/{id}/reviews", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	defer server.Close()

	c := client.New(server.URL, time.Second)
	err := api.CreateReview(context.Background(), c, api.Review{
		BusinessID: "b1",
		Rating:     5,
		Comment:    "  <great> `coffee`  ",
	})
	require.NoError(t, err)
	require.Equal(t, "great coffee", got.Comment)
}

func TestCreateReviewValidatesRating(t *testing.T) {
	c := client.New("http://unused", time.Second)

	err := api.CreateReview(context.Background(), c, api.Review{BusinessID: "b1", Rating: 6})
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")

	err = api.CreateReview(context.Background(), c, api.Review{Rating: 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "business ID")
}

func TestCreateReviewWithPhotosIsMultipart(t *testing.T) {
	var gotRating, gotComment string
	var photoCount int
	router := mux.NewRouter()
	router.HandleFunc("/businesses/{id}/reviews", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotRating = r.FormValue("rating")
		gotComment = r.FormValue("comment")
		photoCount = len(r.MultipartForm.File)
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	defer server.Close()

	c := client.New(server.URL, time.Second)
	err := api.CreateReviewWithPhotos(context.Background(), c,
		api.Review{BusinessID: "b1", Rating: 4, Comment: "nice"},
		[]api.Photo{
			{Name: "one.jpg", Content: []byte{1}},
			{Name: "two.jpg", Content: []byte{2}},
		})
	require.NoError(t, err)
	require.Equal(t, "4", gotRating)
	require.Equal(t, "nice", gotComment)
	require.Equal(t, 2, photoCount)
}

func newAIServer(t *testing.T) (*client.Client, *int32) {
	t.Helper()

	var hits int32
	router := mux.NewRouter()
	router.HandleFunc("/ai/summarize", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		var req struct {
			Reviews []string `json:"reviews"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		require.LessOrEqual(t, len(req.Reviews), 12)
		json.NewEncoder(w).Encode(map[string]string{"summary": " Cozy spot with good coffee. "})
	}).Methods(http.MethodPost)
	router.HandleFunc("/ai/suggest-tags", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(map[string][]string{
			"tags": {"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8", "t9", "t10"},
		})
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return client.New(server.URL, time.Second), &hits
}

func TestSummarizeReviewsDeduplicatesAndTrims(t *testing.T) {
	c, hits := newAIServer(t)

	summary, err := api.SummarizeReviews(context.Background(), c, []string{
		" great ", "great", "awful", "",
	})
	require.NoError(t, err)
	require.Equal(t, "Cozy spot with good coffee.", summary)
	require.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestSummarizeReviewsSkipsSmallBatches(t *testing.T) {
	c, hits := newAIServer(t)

	summary, err := api.SummarizeReviews(context.Background(), c, []string{"only one", "only one"})
	require.NoError(t, err)
	require.Empty(t, summary)
	require.Zero(t, atomic.LoadInt32(hits), "fewer than two distinct reviews is not worth a call")
}

func TestSuggestTagsSkipsShortComments(t *testing.T) {
	c, hits := newAIServer(t)

	tags, err := api.SuggestTags(context.Background(), c, "too short")
	require.NoError(t, err)
	require.Nil(t, tags)
	require.Zero(t, atomic.LoadInt32(hits))
}

func TestSuggestTagsCapsResult(t *testing.T) {
	c, _ := newAIServer(t)

	tags, err := api.SuggestTags(context.Background(), c, "a long enough comment about the place")
	require.NoError(t, err)
	require.Len(t, tags, 8)
}
