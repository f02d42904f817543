package contiguity

import (
	"context"
	defError "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/districtr/districtr-v2-sub000/internal/errors"
	"github.com/districtr/districtr-v2-sub000/internal/geography"
	"github.com/districtr/districtr-v2-sub000/internal/graph"
	"github.com/districtr/districtr-v2-sub000/internal/plan"
	"github.com/districtr/districtr-v2-sub000/redis"

	"gorm.io/gorm"
)

// ErrZoneNotFound is returned when a requested zone has no assignments.
var ErrZoneNotFound = defError.New("zone has no assignments")

// GraphLoader is satisfied by *graph.Store.
type GraphLoader interface {
	Load(ctx context.Context, layer string) (*graph.Graph, error)
}

// Service reports, per zone, how the assigned geo_ids hang together in
// the layer's adjacency graph. Purely informational: a zone in two or
// more pieces is a discontiguous district, but nothing is repaired.
type Service interface {
	ConnectedComponents(ctx context.Context, docID string, zones []int) (map[int]int, error)
	ComponentBBoxes(ctx context.Context, docID string, zone int) ([]graph.BBox, error)
}

type DefaultService struct {
	assignments plan.AssignmentRepository
	geography   geography.Repository
	graphs      GraphLoader
	cache       *redis.Cache
}

func NewService(
	assignments plan.AssignmentRepository,
	geoRepo geography.Repository,
	graphs GraphLoader,
	cache *redis.Cache,
) Service {
	return &DefaultService{
		assignments: assignments,
		geography:   geoRepo,
		graphs:      graphs,
		cache:       cache,
	}
}

func (s *DefaultService) ConnectedComponents(ctx context.Context, docID string, zones []int) (map[int]int, error) {
	cacheKey := s.resultKey(ctx, docID, zones)

	var cached map[int]int
	if found, _ := s.cache.Get(ctx, cacheKey, &cached); found {
		return cached, nil
	}

	g, byZone, err := s.zoneSubgraphs(ctx, docID)
	if err != nil {
		return nil, err
	}

	if len(zones) == 0 {
		for zone := range byZone {
			zones = append(zones, zone)
		}
	}

	counts := make(map[int]int, len(zones))
	for _, zone := range zones {
		counts[zone] = len(g.Components(byZone[zone]))
	}

	go s.cache.Set(context.Background(), cacheKey, counts, 24*time.Hour)
	return counts, nil
}

func (s *DefaultService) ComponentBBoxes(ctx context.Context, docID string, zone int) ([]graph.BBox, error) {
	g, byZone, err := s.zoneSubgraphs(ctx, docID)
	if err != nil {
		return nil, err
	}

	geoIDs, ok := byZone[zone]
	if !ok {
		return nil, errors.New(404, errors.CodeZoneNotFound,
			fmt.Sprintf("Zone %d has no assignments", zone), ErrZoneNotFound)
	}
	return g.ComponentBBoxes(geoIDs), nil
}

// zoneSubgraphs loads the effective layer's graph and the assigned
// geo_ids grouped by zone. The graph fetch is the one blocking I/O
// here and is served from the store's cache after first use.
func (s *DefaultService) zoneSubgraphs(ctx context.Context, docID string) (*graph.Graph, map[int][]string, error) {
	doc, err := s.assignments.FindDocumentByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.NotFound("Document not found", err)
		}
		return nil, nil, err
	}
	m, err := s.geography.FindMapByID(ctx, doc.MapID)
	if err != nil {
		return nil, nil, err
	}

	hasChildren := false
	if m.Shatterable() {
		hasChildren, err = s.assignments.HasChildAssignments(ctx, docID, m.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	g, err := s.graphs.Load(ctx, m.EffectiveLayerName(hasChildren))
	if err != nil {
		return nil, nil, err
	}

	byZone, err := s.assignments.ReadZones(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	return g, byZone, nil
}

func (s *DefaultService) resultKey(ctx context.Context, docID string, zones []int) string {
	v := s.cache.GetVersion(ctx, plan.VersionKey(docID))

	sorted := append([]int(nil), zones...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, z := range sorted {
		parts[i] = fmt.Sprint(z)
	}
	return fmt.Sprintf("contig:%s:v:%d:z:%s", docID, v, strings.Join(parts, ","))
}
