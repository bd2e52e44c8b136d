package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

var ErrExhausted = errors.New("no usable proxies left")

// Entry is one intermediary from the proxy list.
type Entry struct {
	Scheme string
	Host   string
	Port   int
}

// String returns the proxy as a server URL, e.g. http://10.0.0.1:8080.
func (e Entry) String() string {
	return fmt.Sprintf("%s://%s", e.Scheme, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
}

// ParseEntry accepts host:port or scheme://host:port.
func ParseEntry(s string) (Entry, error) {
	s = strings.TrimSpace(s)
	scheme := "http"
	if i := strings.Index(s, "://"); i >= 0 {
		scheme = strings.ToLower(s[:i])
		s = s[i+3:]
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid proxy %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Entry{}, fmt.Errorf("invalid proxy port %q", portStr)
	}
	if host == "" {
		return Entry{}, fmt.Errorf("invalid proxy %q: empty host", s)
	}

	return Entry{Scheme: scheme, Host: host, Port: port}, nil
}

// Pool rotates round-robin through the loaded proxies. Entries marked bad
// are skipped for the rest of the run.
type Pool struct {
	mu      sync.Mutex
	entries []Entry
	bad     map[Entry]bool
	cursor  int
}

func NewPool(entries []Entry) *Pool {
	seen := make(map[Entry]bool, len(entries))
	unique := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		unique = append(unique, e)
	}

	return &Pool{
		entries: unique,
		bad:     make(map[Entry]bool),
	}
}

// Load reads a newline-delimited proxy list. Blank lines and # comments are ignored.
func Load(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open proxy list: %v", scrapeerr.ErrConfig, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := ParseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", scrapeerr.ErrConfig, path, lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read proxy list: %v", scrapeerr.ErrConfig, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: proxy list %s is empty", scrapeerr.ErrConfig, path)
	}

	return NewPool(entries), nil
}

// Next returns the next live proxy and advances the cursor.
func (p *Pool) Next() (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.entries); i++ {
		e := p.entries[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.entries)
		if !p.bad[e] {
			return e, nil
		}
	}

	return Entry{}, ErrExhausted
}

func (p *Pool) MarkBad(e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bad[e] = true
}

// Len is the number of loaded proxies, Live the number still in rotation.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := 0
	for _, e := range p.entries {
		if !p.bad[e] {
			live++
		}
	}
	return live
}
