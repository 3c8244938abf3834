// internal/permsync/worker_test.go
package permsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsar-base/pulsar-backend/config"
)

func testWorker(url string) *Worker {
	return &Worker{
		cfg:    &config.Config{PermissionsURL: url, SyncInterval: time.Minute},
		client: &http.Client{Timeout: time.Second},
		queue:  NewTaskQueue(1),
	}
}

func TestFetchReturnsBody(t *testing.T) {
	payload := `{"updatedAt":"2026-08-28T10:00:00Z","tables":{"posts":{"view":"@request.user == author"}}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(payload))
	}))
	defer server.Close()

	body, err := testWorker(server.URL).fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestFetchRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testWorker(server.URL).fetch(context.Background())
	assert.ErrorContains(t, err, "status 503")
}

func TestRunDisabledWithoutURL(t *testing.T) {
	w := testWorker("")

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker should return immediately without a permissions URL")
	}
}

func TestRemoteDocumentDecoding(t *testing.T) {
	payload := []byte(`{
		"updatedAt": "2026-08-28T10:00:00Z",
		"tables": {
			"posts": {"view": "@request.user == author", "create": null},
			"tags": {"delete": "@request.user != owner"}
		}
	}`)

	var doc RemoteDocument
	require.NoError(t, json.Unmarshal(payload, &doc))

	assert.Equal(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), doc.UpdatedAt)
	require.Contains(t, doc.Tables, "posts")
	require.NotNil(t, doc.Tables["posts"].View)
	assert.Equal(t, "@request.user == author", *doc.Tables["posts"].View)
	assert.Nil(t, doc.Tables["posts"].Create)
	require.Contains(t, doc.Tables, "tags")
	require.NotNil(t, doc.Tables["tags"].Delete)
}
