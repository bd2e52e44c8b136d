package discovery

import (
	"net/url"
	"strings"
)

// linkSet keeps the first occurrence of every link, in insertion order.
type linkSet struct {
	base  *url.URL
	seen  map[string]struct{}
	order []string
}

func newLinkSet(base *url.URL) *linkSet {
	return &linkSet{
		base: base,
		seen: make(map[string]struct{}),
	}
}

// Add resolves and inserts links, returning how many were new.
func (s *linkSet) Add(links ...string) int {
	added := 0
	for _, raw := range links {
		link, ok := s.resolve(raw)
		if !ok {
			continue
		}
		if _, dup := s.seen[link]; dup {
			continue
		}
		s.seen[link] = struct{}{}
		s.order = append(s.order, link)
		added++
	}
	return added
}

func (s *linkSet) Len() int {
	return len(s.order)
}

func (s *linkSet) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *linkSet) resolve(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(strings.ToLower(raw), "javascript:") {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if s.base != nil {
		u = s.base.ResolveReference(u)
	}
	u.Fragment = ""

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}
