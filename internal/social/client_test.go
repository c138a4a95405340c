package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.SocialConfig{
		BaseURL:     server.URL + "/2/",
		BearerToken: "token",
		Timeout:     5 * time.Second,
	})
}

func TestClient_LookupUserID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/by/username/someone", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"id":"42","name":"Someone","username":"someone"}}`))
	})

	id, err := client.LookupUserID(context.Background(), "someone")

	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestClient_LookupUserID_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"detail":"Could not find user with username: [ghost]."}]}`))
	})

	_, err := client.LookupUserID(context.Background(), "ghost")

	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestClient_UpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.LookupUserID(context.Background(), "someone")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)

	_, err = client.RecentPosts(context.Background(), "42", 10)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestClient_RecentPosts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/42/tweets", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		assert.Equal(t, "created_at,text", r.URL.Query().Get("tweet.fields"))
		w.Write([]byte(`{"data":[
			{"id":"3","text":"newest","created_at":"2025-07-20T10:00:00.000Z"},
			{"id":"2","text":"middle","created_at":"2025-07-20T09:00:00.000Z"},
			{"id":"1","text":"oldest","created_at":"2025-07-20T08:00:00.000Z"}]}`))
	})

	posts, err := client.RecentPosts(context.Background(), "42", 2)

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "3", posts[0].ID)
	assert.Equal(t, "middle", posts[1].Text)
}

func TestClient_RecentPosts_NoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"result_count":0}}`))
	})

	posts, err := client.RecentPosts(context.Background(), "42", 10)

	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
}
