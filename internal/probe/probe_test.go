package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCheck(t *testing.T) {
	t.Run("reachable site passes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer srv.Close()

		p := New(Config{UserAgent: "test-agent"}, zap.NewNop())
		assert.NoError(t, p.Check(context.Background(), srv.URL))
	})

	t.Run("forbidden is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		p := New(Config{UserAgent: "test-agent"}, zap.NewNop())
		err := p.Check(context.Background(), srv.URL)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("unreachable host fails", func(t *testing.T) {
		p := New(Config{UserAgent: "test-agent", Timeout: time.Second}, zap.NewNop())
		err := p.Check(context.Background(), "http://127.0.0.1:1")
		assert.Error(t, err)
	})

	t.Run("canceled context short-circuits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := New(Config{UserAgent: "test-agent"}, zap.NewNop())
		err := p.Check(ctx, "http://example.invalid")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
