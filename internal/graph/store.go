package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store loads and caches adjacency graphs by layer name. Layers are
// immutable reference data, so entries live until Invalidate; a failed
// load is returned to the caller and never cached.
type Store struct {
	source     string // http(s) base URL or local directory
	httpClient *http.Client

	mu     sync.RWMutex
	graphs map[string]*Graph
}

func NewStore(source string) *Store {
	return &Store{
		source: source,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		graphs: make(map[string]*Graph),
	}
}

// Load returns the cached graph for a layer, fetching and parsing the
// artifact on first use.
func (s *Store) Load(ctx context.Context, layer string) (*Graph, error) {
	s.mu.RLock()
	g, ok := s.graphs[layer]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}

	raw, err := s.fetch(ctx, layer)
	if err != nil {
		return nil, err
	}
	g, err = Parse(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// another request may have filled the entry while we were fetching
	if cached, ok := s.graphs[layer]; ok {
		g = cached
	} else {
		s.graphs[layer] = g
	}
	s.mu.Unlock()
	return g, nil
}

// Invalidate drops the cached graph for a layer.
func (s *Store) Invalidate(layer string) {
	s.mu.Lock()
	delete(s.graphs, layer)
	s.mu.Unlock()
}

func (s *Store) fetch(ctx context.Context, layer string) ([]byte, error) {
	if strings.HasPrefix(s.source, "http://") || strings.HasPrefix(s.source, "https://") {
		return s.fetchHTTP(ctx, layer)
	}
	return os.ReadFile(filepath.Join(s.source, layer+".json"))
}

// fetchHTTP pulls the artifact from the blob store over HTTP.
func (s *Store) fetchHTTP(ctx context.Context, layer string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s.json", strings.TrimSuffix(s.source, "/"), layer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf(
			"graph artifact fetch error: layer=%s status=%d body=%s",
			layer,
			resp.StatusCode,
			string(b),
		)
	}

	return io.ReadAll(resp.Body)
}
