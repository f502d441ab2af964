package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mteam-client/internal/credentials"
	"mteam-client/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := &credentials.MemoryStore{}
	require.NoError(t, store.Set("0123456789abcdef0123456789abcdef"))

	return NewClient(Config{BaseURL: srv.URL}, store), srv
}

func TestSearchDecodesStringNumbers(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/torrent/search", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tvshow", req["mode"])
		assert.Equal(t, float64(1), req["visible"])

		w.Write([]byte(`{
			"code": "0",
			"message": "SUCCESS",
			"data": {
				"pageNumber": "2",
				"pageSize": "20",
				"total": "45",
				"totalPages": "3",
				"data": [
					{"id": "1001", "name": "Show.S01", "size": "3221225472",
					 "status": {"seeders": "12", "leechers": "3"}}
				]
			}
		}`))
	})

	page, err := client.Search(context.Background(),
		domain.NewSearchQuery("show", domain.CategoryTVShow, 2, 20))
	require.NoError(t, err)

	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 45, page.TotalCount)
	assert.True(t, page.HasMore())
	require.Len(t, page.Releases, 1)
	assert.Equal(t, "1001", page.Releases[0].ID)
	assert.Equal(t, 12, page.Releases[0].Seeders())
}

func TestSearchNullDataIsEmptyPage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": "0", "message": "SUCCESS", "data": null}`))
	})

	page, err := client.Search(context.Background(),
		domain.NewSearchQuery("none", domain.CategoryAll, 1, 20))
	require.NoError(t, err)
	assert.Empty(t, page.Releases)
	assert.False(t, page.HasMore())
}

func TestSearchRemoteError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": "1", "message": "PARAMETER ERROR", "data": null}`))
	})

	_, err := client.Search(context.Background(),
		domain.NewSearchQuery("x", domain.CategoryAll, 1, 20))
	assert.Equal(t, KindRemoteAPI, KindOf(err))
	assert.Contains(t, err.Error(), "PARAMETER ERROR")
}

func TestSearchUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Search(context.Background(),
		domain.NewSearchQuery("x", domain.CategoryAll, 1, 20))
	assert.Equal(t, KindInvalidCredential, KindOf(err))
}

func TestSearchMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the tracker without a key")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, &credentials.MemoryStore{})
	_, err := client.Search(context.Background(),
		domain.NewSearchQuery("x", domain.CategoryAll, 1, 20))
	assert.Equal(t, KindInvalidCredential, KindOf(err))
}

func TestSearchMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>definitely not json</html>`))
	})

	_, err := client.Search(context.Background(),
		domain.NewSearchQuery("x", domain.CategoryAll, 1, 20))
	assert.Equal(t, KindDecoding, KindOf(err))
}

func TestGenDownloadToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/torrent/genDlToken", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1001", r.PostForm.Get("id"))

		w.Write([]byte(`{"code": "0", "message": "SUCCESS", "data": "https://tracker.example/download?sig=abc"}`))
	})

	url, err := client.GenDownloadToken(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.example/download?sig=abc", url)
}

func TestGenDownloadTokenEmptyData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": "0", "message": "SUCCESS", "data": ""}`))
	})

	_, err := client.GenDownloadToken(context.Background(), "1001")
	assert.Equal(t, KindRemoteAPI, KindOf(err))
}

func TestFetchImage(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF}
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})

	data, err := client.FetchImage(context.Background(), srv.URL+"/poster.jpg")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = client.FetchImage(context.Background(), "not a url")
	assert.Equal(t, KindInvalidURL, KindOf(err))
}
