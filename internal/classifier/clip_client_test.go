package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
)

func newTestClipClient(url string, retries int) *ClipClient {
	c := NewClipClient(&config.ClassifierConfig{
		URL:        url,
		Timeout:    2 * time.Second,
		MaxRetries: retries,
	}, testLogger())
	c.backoff = time.Millisecond
	return c
}

func TestClipClient_Score(t *testing.T) {
	c := smallCatalog()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, c.Prompts(), r.MultipartForm.Value["label"])
		f, _, err := r.FormFile("image")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "jpeg-bytes", string(data))

		_ = json.NewEncoder(w).Encode(ScoreResponse{Probabilities: []float64{0.1, 0.6, 0.2, 0.1}})
	}))
	defer srv.Close()

	score, err := newTestClipClient(srv.URL, 0).Score(context.Background(), []byte("jpeg-bytes"), c)
	require.NoError(t, err)
	assert.Equal(t, ImageScore{0.1, 0.6, 0.2, 0.1}, score)
}

func TestClipClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ScoreResponse{Probabilities: []float64{0.25, 0.25, 0.25, 0.25}})
	}))
	defer srv.Close()

	_, err := newTestClipClient(srv.URL, 3).Score(context.Background(), []byte("x"), smallCatalog())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClipClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClipClient(srv.URL, 2).Score(context.Background(), []byte("x"), smallCatalog())
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClipClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "cannot identify image file", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClipClient(srv.URL, 3).Score(context.Background(), []byte("x"), smallCatalog())
	assert.True(t, errors.Is(err, ErrScorerRejected))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClipClient_RejectsWrongVectorLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ScoreResponse{Probabilities: []float64{1}})
	}))
	defer srv.Close()

	_, err := newTestClipClient(srv.URL, 0).Score(context.Background(), []byte("x"), smallCatalog())
	assert.Error(t, err)
}

func TestClipClient_EmptyImage(t *testing.T) {
	_, err := newTestClipClient("http://127.0.0.1:0", 0).Score(context.Background(), nil, smallCatalog())
	assert.True(t, errors.Is(err, ErrScorerRejected))
}
