package plan

import (
	"context"
	defError "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/districtr/districtr-v2-sub000/internal/errors"
	"github.com/districtr/districtr-v2-sub000/internal/geography"
	"github.com/districtr/districtr-v2-sub000/internal/worker"
	"github.com/districtr/districtr-v2-sub000/redis"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignmentInput is one client-submitted edit. A nil zone clears the
// unit's assignment while keeping it at its current granularity.
type AssignmentInput struct {
	GeoID string `json:"geo_id" binding:"required"`
	Zone  *int   `json:"zone"`
}

type UpsertResult struct {
	Count     int64     `json:"count"`
	Dropped   int       `json:"dropped"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ShatterResult struct {
	Children  []Assignment `json:"children"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type HealResult struct {
	HealedGeoIDs []string  `json:"healed_geo_ids"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Service interface {
	CreateDocument(ctx context.Context, mapID string) (*Document, error)
	GetDocument(ctx context.Context, docID string) (*Document, error)
	DeleteDocument(ctx context.Context, docID string) error

	UpsertAssignments(ctx context.Context, docID string, batch []AssignmentInput) (*UpsertResult, error)
	ReadAssignments(ctx context.Context, docID string) (map[string]*int, error)
	Shatter(ctx context.Context, docID string, parentPaths []string) (*ShatterResult, error)
	Heal(ctx context.Context, docID string, childPaths []string, zone int) (*HealResult, error)
	Reset(ctx context.Context, docID string) error
	Duplicate(ctx context.Context, fromDoc, toDoc string) (int64, error)
	Import(ctx context.Context, docID string, rows []ImportRow) (*ImportResult, error)
	Unions(ctx context.Context, docID string) ([]DistrictUnion, error)
}

type DefaultService struct {
	repository      AssignmentRepository
	geography       geography.Repository
	cache           *redis.Cache
	pool            *worker.Pool
	healSingleChild bool

	// hierarchy indexes are immutable per map, cached after first build
	hierarchies sync.Map // map id to *geography.HierarchyIndex
}

func NewService(
	repository AssignmentRepository,
	geoRepo geography.Repository,
	cache *redis.Cache,
	pool *worker.Pool,
	healSingleChild bool,
) *DefaultService {
	return &DefaultService{
		repository:      repository,
		geography:       geoRepo,
		cache:           cache,
		pool:            pool,
		healSingleChild: healSingleChild,
	}
}

func (s *DefaultService) CreateDocument(ctx context.Context, mapID string) (*Document, error) {
	if _, err := s.geography.FindMapByID(ctx, mapID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Map configuration not found", err)
		}
		return nil, err
	}

	doc := &Document{ID: uuid.NewString(), MapID: mapID}
	if err := s.repository.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DefaultService) GetDocument(ctx context.Context, docID string) (*Document, error) {
	return s.findDocument(ctx, docID)
}

func (s *DefaultService) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := s.findDocument(ctx, docID); err != nil {
		return err
	}
	if err := s.repository.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	s.bumpVersion(ctx, docID)
	return nil
}

func (s *DefaultService) ReadAssignments(ctx context.Context, docID string) (map[string]*int, error) {
	if _, err := s.findDocument(ctx, docID); err != nil {
		return nil, err
	}
	return s.repository.Read(ctx, docID)
}

// UpsertAssignments persists a batch of direct edits. Malformed rows
// (non-positive zones) are dropped and counted, never fatal.
func (s *DefaultService) UpsertAssignments(ctx context.Context, docID string, batch []AssignmentInput) (*UpsertResult, error) {
	doc, err := s.findDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	rows := make([]Assignment, 0, len(batch))
	dropped := 0
	for _, in := range batch {
		if in.GeoID == "" || (in.Zone != nil && *in.Zone <= 0) {
			dropped++
			continue
		}
		rows = append(rows, Assignment{GeoID: in.GeoID, Zone: in.Zone})
	}

	// nothing survived filtering: report the stored timestamp untouched
	if len(rows) == 0 {
		return &UpsertResult{Dropped: dropped, UpdatedAt: doc.UpdatedAt}, nil
	}

	count, updatedAt, err := s.repository.Upsert(ctx, docID, rows)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, docID)
	return &UpsertResult{Count: count, Dropped: dropped, UpdatedAt: updatedAt}, nil
}

// Shatter replaces each whole parent's assignment row with one row per
// child, all inheriting the parent's zone. Re-shattering an already
// shattered parent is a no-op for that parent; an unknown parent fails
// the whole call, which runs as one transaction.
func (s *DefaultService) Shatter(ctx context.Context, docID string, parentPaths []string) (*ShatterResult, error) {
	doc, m, idx, err := s.documentContext(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !m.Shatterable() {
		return nil, errors.New(409, errors.CodeNotShatterable, "Map has no child layer", ErrNotShatterable)
	}

	childrenOf := make(map[string][]string, len(parentPaths))
	var lookup []string
	for _, parent := range parentPaths {
		children := idx.ChildrenOf(parent)
		if len(children) == 0 {
			return nil, errors.New(404, errors.CodeNoSuchParent,
				fmt.Sprintf("Unknown parent geo_id %q", parent), ErrNoSuchParent)
		}
		childrenOf[parent] = children
		lookup = append(lookup, parent)
		lookup = append(lookup, children...)
	}

	existing, err := s.repository.RowsForGeoIDs(ctx, doc.ID, lookup)
	if err != nil {
		return nil, err
	}
	present := make(map[string]*int, len(existing))
	for _, row := range existing {
		present[row.GeoID] = row.Zone
	}

	var removeIDs []string
	var inserts []Assignment
	for _, parent := range parentPaths {
		children := childrenOf[parent]

		// already shattered if any child row exists
		shattered := false
		for _, child := range children {
			if _, ok := present[child]; ok {
				shattered = true
				break
			}
		}
		if shattered {
			continue
		}

		zone, hadRow := present[parent]
		if hadRow {
			removeIDs = append(removeIDs, parent)
		}
		for _, child := range children {
			inserts = append(inserts, Assignment{GeoID: child, Zone: copyZone(zone)})
		}
	}

	updatedAt := doc.UpdatedAt
	if len(removeIDs) > 0 || len(inserts) > 0 {
		updatedAt, err = s.repository.SwapRows(ctx, doc.ID, removeIDs, inserts)
		if err != nil {
			return nil, err
		}
		s.afterWrite(ctx, doc.ID)
	}

	return &ShatterResult{Children: inserts, UpdatedAt: updatedAt}, nil
}

// Heal reverts child assignments to parent level. For each distinct
// parent owning any of the given children, every one of that parent's
// children must be assigned the requested zone; otherwise the parent is
// left shattered. It is all children or none, per parent.
func (s *DefaultService) Heal(ctx context.Context, docID string, childPaths []string, zone int) (*HealResult, error) {
	doc, m, idx, err := s.documentContext(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !m.Shatterable() {
		return nil, errors.New(409, errors.CodeNotShatterable, "Map has no child layer", ErrNotShatterable)
	}

	parents := make(map[string]struct{})
	var lookup []string
	for _, child := range childPaths {
		parent, ok := idx.ParentOf(child)
		if !ok {
			return nil, errors.New(500, errors.CodeCorruptHierarchy,
				fmt.Sprintf("geo_id %q has no parent in the hierarchy", child), ErrCorruptHierarchy)
		}
		if _, seen := parents[parent]; !seen {
			parents[parent] = struct{}{}
			lookup = append(lookup, idx.ChildrenOf(parent)...)
		}
	}

	existing, err := s.repository.RowsForGeoIDs(ctx, doc.ID, lookup)
	if err != nil {
		return nil, err
	}
	present := make(map[string]*int, len(existing))
	for _, row := range existing {
		present[row.GeoID] = row.Zone
	}

	var healed []string
	var removeIDs []string
	var inserts []Assignment
	for parent := range parents {
		uniform := true
		for _, child := range idx.ChildrenOf(parent) {
			z, ok := present[child]
			if !ok || z == nil || *z != zone {
				uniform = false
				break
			}
		}
		if !uniform {
			continue
		}
		healed = append(healed, parent)
		removeIDs = append(removeIDs, idx.ChildrenOf(parent)...)
		z := zone
		inserts = append(inserts, Assignment{GeoID: parent, Zone: &z})
	}
	sort.Strings(healed)

	updatedAt := doc.UpdatedAt
	if len(healed) > 0 {
		updatedAt, err = s.repository.SwapRows(ctx, doc.ID, removeIDs, inserts)
		if err != nil {
			return nil, err
		}
		s.afterWrite(ctx, doc.ID)
	}

	return &HealResult{HealedGeoIDs: healed, UpdatedAt: updatedAt}, nil
}

func (s *DefaultService) Reset(ctx context.Context, docID string) error {
	if _, err := s.findDocument(ctx, docID); err != nil {
		return err
	}
	if _, err := s.repository.Reset(ctx, docID); err != nil {
		return err
	}
	s.afterWrite(ctx, docID)
	return nil
}

// Duplicate copies the full assignment set between documents,
// all-or-nothing: any geo_id overlap in the target aborts the copy.
func (s *DefaultService) Duplicate(ctx context.Context, fromDoc, toDoc string) (int64, error) {
	if _, err := s.findDocument(ctx, fromDoc); err != nil {
		return 0, err
	}
	if _, err := s.findDocument(ctx, toDoc); err != nil {
		return 0, err
	}

	count, _, err := s.repository.DuplicateInto(ctx, fromDoc, toDoc)
	if err != nil {
		if defError.Is(err, ErrConflict) {
			return 0, errors.Conflict("Target document already has overlapping assignments", err)
		}
		return 0, err
	}
	s.afterWrite(ctx, toDoc)
	return count, nil
}

// Import ingests raw (geo_id, zone_label) rows of unknown granularity
// and produces a minimal healed assignment set. Healing runs before the
// validity filter so a complete uniform child group resolves to its
// parent even when the child ids themselves are unknown. The staged set
// replaces the document's assignments wholesale; merging would let a
// surviving parent row sit alongside freshly imported child rows.
func (s *DefaultService) Import(ctx context.Context, docID string, rows []ImportRow) (*ImportResult, error) {
	doc, m, idx, err := s.documentContext(ctx, docID)
	if err != nil {
		return nil, err
	}

	st := stageRows(rows, m.NumDistricts)

	var known map[string]struct{}
	if m.Shatterable() {
		healStaged(&st, idx, s.healSingleChild)
		known, err = s.geography.FilterKnownGeoIDs(ctx, m.ID, nil, st.geoIDs())
	} else {
		known, err = s.geography.FilterKnownGeoIDs(ctx, m.ID,
			[]string{geography.LayerParent}, st.geoIDs())
	}
	if err != nil {
		return nil, err
	}

	inserts := st.assignments(doc.ID, known)
	count, updatedAt, err := s.repository.Replace(ctx, doc.ID, inserts)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, doc.ID)
	return &ImportResult{
		Inserted:       count,
		DroppedNull:    st.droppedNull,
		DroppedInvalid: st.droppedInvalid,
		UpdatedAt:      updatedAt,
	}, nil
}

// Unions returns the per-zone rollups, recomputing them when their
// snapshot predates the document's last write.
func (s *DefaultService) Unions(ctx context.Context, docID string) ([]DistrictUnion, error) {
	doc, err := s.findDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	unions, err := s.repository.UnionsFor(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(unions) > 0 && !unions[0].UpdatedAt.Before(doc.UpdatedAt) {
		return unions, nil
	}
	return s.recomputeUnions(ctx, doc)
}

func (s *DefaultService) recomputeUnions(ctx context.Context, doc *Document) ([]DistrictUnion, error) {
	zones, err := s.repository.ReadZones(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	var allIDs []string
	for _, ids := range zones {
		allIDs = append(allIDs, ids...)
	}
	pops, err := s.geography.PopulationByGeoID(ctx, doc.MapID, allIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	unions := make([]DistrictUnion, 0, len(zones))
	for zone, ids := range zones {
		u := DistrictUnion{DocumentID: doc.ID, Zone: zone, UnitCount: len(ids), UpdatedAt: now}
		for _, id := range ids {
			u.TotalPop += pops[id]
		}
		unions = append(unions, u)
	}
	sort.Slice(unions, func(i, j int) bool { return unions[i].Zone < unions[j].Zone })

	if err := s.repository.ReplaceUnions(ctx, doc.ID, unions); err != nil {
		return nil, err
	}
	return unions, nil
}

// findDocument translates the gorm not-found into our API error.
func (s *DefaultService) findDocument(ctx context.Context, docID string) (*Document, error) {
	doc, err := s.repository.FindDocumentByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}
	return doc, nil
}

func (s *DefaultService) documentContext(ctx context.Context, docID string) (*Document, *geography.MapConfiguration, *geography.HierarchyIndex, error) {
	doc, err := s.findDocument(ctx, docID)
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := s.geography.FindMapByID(ctx, doc.MapID)
	if err != nil {
		return nil, nil, nil, err
	}
	idx, err := s.hierarchyFor(ctx, m.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return doc, m, idx, nil
}

func (s *DefaultService) hierarchyFor(ctx context.Context, mapID string) (*geography.HierarchyIndex, error) {
	if cached, ok := s.hierarchies.Load(mapID); ok {
		return cached.(*geography.HierarchyIndex), nil
	}
	idx, err := s.geography.HierarchyFor(ctx, mapID)
	if err != nil {
		return nil, err
	}
	actual, _ := s.hierarchies.LoadOrStore(mapID, idx)
	return actual.(*geography.HierarchyIndex), nil
}

// afterWrite bumps the document's cache version and queues a union
// refresh so the next read is cheap.
func (s *DefaultService) afterWrite(ctx context.Context, docID string) {
	s.bumpVersion(ctx, docID)
	if s.pool != nil {
		s.pool.Submit("union-refresh:"+docID, func(taskCtx context.Context) error {
			doc, err := s.repository.FindDocumentByID(taskCtx, docID)
			if err != nil {
				return err
			}
			_, err = s.recomputeUnions(taskCtx, doc)
			return err
		})
	}
}

func (s *DefaultService) bumpVersion(ctx context.Context, docID string) {
	s.cache.IncrementVersion(ctx, VersionKey(docID))
}

// VersionKey is the Redis counter bumped on every write to a document;
// readers fold it into their cache keys.
func VersionKey(docID string) string {
	return fmt.Sprintf("doc:%s:version", docID)
}

func copyZone(z *int) *int {
	if z == nil {
		return nil
	}
	v := *z
	return &v
}
