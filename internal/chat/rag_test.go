package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRAG(t *testing.T, status int, body string) (*RAGClient, *string) {
	t.Helper()
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		query = req["query"]
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewRAGClient(server.URL+"/query", 5*time.Second), &query
}

func TestRAGClient_Ask(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "answer key", body: `{"answer":"  breathe with me  ","response":"ignored"}`, want: "breathe with me"},
		{name: "response key", body: `{"response":"try a walk"}`, want: "try a walk"},
		{name: "neither key", body: `{"sources":[]}`, want: noValidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, query := newTestRAG(t, http.StatusOK, tt.body)

			reply, err := client.Ask(context.Background(), "hello")

			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
			assert.Equal(t, "hello", *query)
		})
	}
}

func TestRAGClient_NonOKStatus(t *testing.T) {
	client, _ := newTestRAG(t, http.StatusBadGateway, "upstream down")

	_, err := client.Ask(context.Background(), "hello")

	assert.ErrorIs(t, err, errBadStatus)
}

func TestRAGClient_TransportError(t *testing.T) {
	client := NewRAGClient("http://127.0.0.1:1/query", time.Second)

	_, err := client.Ask(context.Background(), "hello")

	require.Error(t, err)
	assert.NotErrorIs(t, err, errBadStatus)
}
