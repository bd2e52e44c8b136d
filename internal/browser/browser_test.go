package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if !opts.Headless {
		t.Error("Expected headless to be true by default")
	}

	if opts.Timeout != 20*time.Second {
		t.Errorf("Expected timeout to be 20s, got %v", opts.Timeout)
	}

	if opts.ViewportWidth != 1920 || opts.ViewportHeight != 1080 {
		t.Errorf("Expected viewport to be 1920x1080, got %dx%d", opts.ViewportWidth, opts.ViewportHeight)
	}

	if opts.Locale != "en-US" {
		t.Errorf("Expected locale to be en-US, got %s", opts.Locale)
	}

	if opts.ProxyServer != "" {
		t.Errorf("Expected no proxy by default, got %s", opts.ProxyServer)
	}
}

func TestWithProxyCopies(t *testing.T) {
	base := DefaultOptions()
	proxied := base.WithProxy("http://10.0.0.1:8080")

	if proxied.ProxyServer != "http://10.0.0.1:8080" {
		t.Errorf("Expected proxy to be set, got %q", proxied.ProxyServer)
	}
	if base.ProxyServer != "" {
		t.Errorf("Expected original options untouched, got %q", base.ProxyServer)
	}
	if proxied.Timeout != base.Timeout {
		t.Errorf("Expected timeout carried over, got %v", proxied.Timeout)
	}
}

func TestTranslateTimeout(t *testing.T) {
	err := translate(fmt.Errorf("page.goto: %w", playwright.ErrTimeout))
	if !errors.Is(err, scrapeerr.ErrTimeout) {
		t.Errorf("Expected playwright timeout to map to ErrTimeout, got %v", err)
	}

	other := errors.New("net::ERR_CONNECTION_RESET")
	if got := translate(other); got != other {
		t.Errorf("Expected non-timeout errors to pass through, got %v", got)
	}

	if translate(nil) != nil {
		t.Error("Expected nil to stay nil")
	}
}

func TestToStrings(t *testing.T) {
	got := toStrings([]interface{}{"https://www.nike.com/t/1", 42, "", "https://www.nike.com/t/2"})
	want := []string{"https://www.nike.com/t/1", "", "https://www.nike.com/t/2"}

	if len(got) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Index %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if toStrings("not a list") != nil {
		t.Error("Expected nil for non-list input")
	}
}

func TestChromedpHelpers(t *testing.T) {
	if q := quote(`[data-testid^="Thumbnail-Img-"]`); q != `"[data-testid^=\"Thumbnail-Img-\"]"` {
		t.Errorf("Unexpected quoted selector %s", q)
	}

	h := headers(map[string]string{"Accept-Language": "en-US"})
	if h["Accept-Language"] != "en-US" {
		t.Errorf("Expected header copied, got %v", h)
	}

	f := NewChromedpFactory(DefaultOptions().WithProxy("http://10.0.0.1:8080"))
	if n := len(f.allocatorOptions()); n <= len(chromedp.DefaultExecAllocatorOptions) {
		t.Errorf("Expected extra allocator options, got %d", n)
	}
}

func TestSessionsRespectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewPlaywrightFactory(nil).NewSession(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCloseOnCancel(t *testing.T) {
	t.Run("closes when cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		closed := make(chan struct{})

		stop := closeOnCancel(ctx, func() error {
			close(closed)
			return nil
		})
		defer stop()
		cancel()

		select {
		case <-closed:
		case <-time.After(time.Second):
			t.Fatal("Expected page to be closed after cancel")
		}
	})

	t.Run("stop before cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		called := false
		stop := closeOnCancel(ctx, func() error {
			called = true
			return nil
		})

		if !stop() {
			t.Error("Expected stop to prevent the close")
		}
		cancel()
		time.Sleep(10 * time.Millisecond)
		if called {
			t.Error("Expected no close after stop")
		}
	})
}
