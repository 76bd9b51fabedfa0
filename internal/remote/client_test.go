package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contextsync/internal/domain"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func sample(id string) domain.Project {
	p := domain.Project{
		ID:       id,
		Name:     "Checkout",
		Contexts: []domain.BoundedContext{{ID: "ctx-1", Name: "Orders"}},
		Users:    []domain.User{{ID: "usr-1", Name: "Shopper", Position: 10}},
	}
	p.Normalize()
	return p
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	for _, bad := range []string{"", "ftp://store", "http://", "://x"} {
		_, err := New(bad)
		assert.Error(t, err, bad)
	}
	_, err := New("https://store.example.com/api/")
	assert.NoError(t, err)
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	store := NewStoreServer(nil)
	c := newTestClient(t, store)
	ctx := context.Background()

	require.NoError(t, c.UploadProject(ctx, sample("proj-1")))
	assert.Equal(t, []string{"proj-1"}, store.IDs())

	got, err := c.DownloadProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, sample("proj-1"), got)
}

func TestDownload_NotFound(t *testing.T) {
	c := newTestClient(t, NewStoreServer(nil))

	_, err := c.DownloadProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpload_RequiresID(t *testing.T) {
	c := newTestClient(t, NewStoreServer(nil))
	assert.Error(t, c.UploadProject(context.Background(), domain.Project{Name: "x"}))
}

func TestUpload_StatusError(t *testing.T) {
	r := chi.NewRouter()
	r.Put("/projects/{id}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "disk full", http.StatusInsufficientStorage)
	})
	c := newTestClient(t, r)

	err := c.UploadProject(context.Background(), sample("proj-1"))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInsufficientStorage, se.Code)
	assert.Equal(t, "disk full", se.Body)
	assert.Equal(t, "/projects/proj-1", se.Path)
}

func TestClient_BaseURLPathPrefix(t *testing.T) {
	var path atomic.Value
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api/v1/", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	require.NoError(t, c.UploadProject(context.Background(), sample("proj-1")))
	assert.Equal(t, "/api/v1/projects/proj-1", path.Load())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, h, WithBreaker(BreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 3, FailureRatio: 0.5,
	}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.DownloadProject(ctx, "proj-1")
		require.Error(t, err)
	}
	_, err := c.DownloadProject(ctx, "proj-1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	c := newTestClient(t, NewStoreServer(nil), WithBreaker(BreakerConfig{
		MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 1, FailureRatio: 0.1,
	}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.DownloadProject(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestStoreServer_OnDownload(t *testing.T) {
	store := NewStoreServer(nil)
	store.OnDownload = func(p domain.Project) domain.Project {
		p.Contexts = nil
		return p
	}
	c := newTestClient(t, store)
	ctx := context.Background()
	require.NoError(t, c.UploadProject(ctx, sample("proj-1")))

	got, err := c.DownloadProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Empty(t, got.Contexts)

	stored, ok := store.Project("proj-1")
	require.True(t, ok)
	assert.Len(t, stored.Contexts, 1)
}
