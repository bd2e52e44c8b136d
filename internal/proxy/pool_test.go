package proxy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"host port", "10.0.0.1:8080", "http://10.0.0.1:8080", false},
		{"with scheme", "socks5://proxy.local:1080", "socks5://proxy.local:1080", false},
		{"whitespace", "  1.2.3.4:3128 ", "http://1.2.3.4:3128", false},
		{"missing port", "10.0.0.1", "", true},
		{"bad port", "10.0.0.1:abc", "", true},
		{"port out of range", "10.0.0.1:70000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseEntry(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestLoad(t *testing.T) {
	path := writeList(t, "# proxies\n10.0.0.1:8080\n\n10.0.0.2:8080\n10.0.0.1:8080\n")

	pool, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
		assert.ErrorIs(t, err, scrapeerr.ErrConfig)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := Load(writeList(t, "\n# only comments\n"))
		assert.ErrorIs(t, err, scrapeerr.ErrConfig)
	})

	t.Run("malformed line", func(t *testing.T) {
		_, err := Load(writeList(t, "10.0.0.1:8080\nnot-a-proxy\n"))
		assert.ErrorIs(t, err, scrapeerr.ErrConfig)
	})
}

func TestNextRoundRobin(t *testing.T) {
	a, _ := ParseEntry("a:1")
	b, _ := ParseEntry("b:2")
	c, _ := ParseEntry("c:3")
	pool := NewPool([]Entry{a, b, c})

	var got []Entry
	for i := 0; i < 4; i++ {
		e, err := pool.Next()
		require.NoError(t, err)
		got = append(got, e)
	}
	assert.Equal(t, []Entry{a, b, c, a}, got)
}

func TestMarkBadSkipsEntry(t *testing.T) {
	a, _ := ParseEntry("a:1")
	b, _ := ParseEntry("b:2")
	pool := NewPool([]Entry{a, b})

	pool.MarkBad(a)
	assert.Equal(t, 1, pool.Live())

	for i := 0; i < 3; i++ {
		e, err := pool.Next()
		require.NoError(t, err)
		assert.Equal(t, b, e)
	}

	pool.MarkBad(b)
	_, err := pool.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}
