package plan

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/districtr/districtr-v2-sub000/internal/geography"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeAssignmentRepo keeps everything in memory so the engine's state
// machine can be exercised without postgres.
type fakeAssignmentRepo struct {
	docs   map[string]*Document
	rows   map[string]map[string]*int // doc id, then geo id, to zone
	unions map[string][]DistrictUnion
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		docs:   make(map[string]*Document),
		rows:   make(map[string]map[string]*int),
		unions: make(map[string][]DistrictUnion),
	}
}

func (f *fakeAssignmentRepo) CreateDocument(_ context.Context, doc *Document) error {
	doc.UpdatedAt = time.Now().UTC()
	f.docs[doc.ID] = doc
	f.rows[doc.ID] = make(map[string]*int)
	return nil
}

func (f *fakeAssignmentRepo) FindDocumentByID(_ context.Context, docID string) (*Document, error) {
	doc, ok := f.docs[docID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return doc, nil
}

func (f *fakeAssignmentRepo) DeleteDocument(_ context.Context, docID string) error {
	delete(f.docs, docID)
	delete(f.rows, docID)
	return nil
}

func (f *fakeAssignmentRepo) touch(docID string) time.Time {
	now := time.Now().UTC()
	if doc, ok := f.docs[docID]; ok {
		doc.UpdatedAt = now
	}
	return now
}

func (f *fakeAssignmentRepo) Upsert(_ context.Context, docID string, rows []Assignment) (int64, time.Time, error) {
	for _, row := range rows {
		f.rows[docID][row.GeoID] = row.Zone
	}
	return int64(len(rows)), f.touch(docID), nil
}

func (f *fakeAssignmentRepo) Replace(_ context.Context, docID string, rows []Assignment) (int64, time.Time, error) {
	f.rows[docID] = make(map[string]*int, len(rows))
	for _, row := range rows {
		f.rows[docID][row.GeoID] = row.Zone
	}
	return int64(len(rows)), f.touch(docID), nil
}

func (f *fakeAssignmentRepo) DuplicateInto(_ context.Context, fromDoc, toDoc string) (int64, time.Time, error) {
	for geoID := range f.rows[fromDoc] {
		if _, clash := f.rows[toDoc][geoID]; clash {
			return 0, time.Time{}, ErrConflict
		}
	}
	for geoID, zone := range f.rows[fromDoc] {
		f.rows[toDoc][geoID] = zone
	}
	return int64(len(f.rows[fromDoc])), f.touch(toDoc), nil
}

func (f *fakeAssignmentRepo) Reset(_ context.Context, docID string) (time.Time, error) {
	f.rows[docID] = make(map[string]*int)
	return f.touch(docID), nil
}

func (f *fakeAssignmentRepo) Read(_ context.Context, docID string) (map[string]*int, error) {
	out := make(map[string]*int, len(f.rows[docID]))
	for geoID, zone := range f.rows[docID] {
		out[geoID] = zone
	}
	return out, nil
}

func (f *fakeAssignmentRepo) RowsForGeoIDs(_ context.Context, docID string, geoIDs []string) ([]Assignment, error) {
	var rows []Assignment
	for _, geoID := range geoIDs {
		if zone, ok := f.rows[docID][geoID]; ok {
			rows = append(rows, Assignment{DocumentID: docID, GeoID: geoID, Zone: zone})
		}
	}
	return rows, nil
}

func (f *fakeAssignmentRepo) SwapRows(_ context.Context, docID string, removeGeoIDs []string, insert []Assignment) (time.Time, error) {
	for _, geoID := range removeGeoIDs {
		delete(f.rows[docID], geoID)
	}
	for _, row := range insert {
		f.rows[docID][row.GeoID] = row.Zone
	}
	return f.touch(docID), nil
}

func (f *fakeAssignmentRepo) ReadZones(_ context.Context, docID string) (map[int][]string, error) {
	zones := make(map[int][]string)
	for geoID, zone := range f.rows[docID] {
		if zone != nil {
			zones[*zone] = append(zones[*zone], geoID)
		}
	}
	return zones, nil
}

func (f *fakeAssignmentRepo) HasChildAssignments(_ context.Context, docID, _ string) (bool, error) {
	for geoID := range f.rows[docID] {
		if _, ok := scenarioIndex().ParentOf(geoID); ok {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignmentRepo) UnionsFor(_ context.Context, docID string) ([]DistrictUnion, error) {
	return f.unions[docID], nil
}

func (f *fakeAssignmentRepo) ReplaceUnions(_ context.Context, docID string, unions []DistrictUnion) error {
	f.unions[docID] = unions
	return nil
}

// fakeGeoRepo serves the scenario map: parents A={a,e}, B={b,c,d}, C={f}.
type fakeGeoRepo struct {
	maps map[string]*geography.MapConfiguration
}

func newFakeGeoRepo() *fakeGeoRepo {
	child := "blocks"
	return &fakeGeoRepo{maps: map[string]*geography.MapConfiguration{
		"m1":   {ID: "m1", ParentLayer: "vtds", ChildLayer: &child},
		"flat": {ID: "flat", ParentLayer: "vtds"},
	}}
}

func (f *fakeGeoRepo) FindMapByID(_ context.Context, mapID string) (*geography.MapConfiguration, error) {
	m, ok := f.maps[mapID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (f *fakeGeoRepo) EdgesForMap(_ context.Context, mapID string) ([]geography.ParentChildEdge, error) {
	if mapID != "m1" {
		return nil, nil
	}
	return []geography.ParentChildEdge{
		{MapID: "m1", ParentPath: "A", ChildPath: "a"},
		{MapID: "m1", ParentPath: "A", ChildPath: "e"},
		{MapID: "m1", ParentPath: "B", ChildPath: "b"},
		{MapID: "m1", ParentPath: "B", ChildPath: "c"},
		{MapID: "m1", ParentPath: "B", ChildPath: "d"},
		{MapID: "m1", ParentPath: "C", ChildPath: "f"},
	}, nil
}

func (f *fakeGeoRepo) HierarchyFor(ctx context.Context, mapID string) (*geography.HierarchyIndex, error) {
	edges, err := f.EdgesForMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return geography.NewHierarchyIndex(edges), nil
}

func (f *fakeGeoRepo) FilterKnownGeoIDs(_ context.Context, mapID string, layers []string, geoIDs []string) (map[string]struct{}, error) {
	parents := map[string]struct{}{"A": {}, "B": {}, "C": {}}
	children := map[string]struct{}{"a": {}, "b": {}, "c": {}, "d": {}, "e": {}, "f": {}}

	known := make(map[string]struct{})
	for _, id := range geoIDs {
		_, isParent := parents[id]
		_, isChild := children[id]
		if len(layers) == 1 && layers[0] == geography.LayerParent {
			isChild = false
		}
		if isParent || isChild {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

func (f *fakeGeoRepo) PopulationByGeoID(_ context.Context, _ string, geoIDs []string) (map[string]int64, error) {
	pops := make(map[string]int64, len(geoIDs))
	for _, id := range geoIDs {
		pops[id] = 100
	}
	return pops, nil
}

func newTestService(t *testing.T) (*DefaultService, *fakeAssignmentRepo, string) {
	t.Helper()
	repo := newFakeAssignmentRepo()
	svc := NewService(repo, newFakeGeoRepo(), nil, nil, false)

	doc, err := svc.CreateDocument(context.Background(), "m1")
	require.NoError(t, err)
	return svc, repo, doc.ID
}

func intPtr(v int) *int { return &v }

// assertFrontier fails if any geo_id and its parent are assigned at once.
func assertFrontier(t *testing.T, repo *fakeAssignmentRepo, docID string) {
	t.Helper()
	idx := scenarioIndex()
	for geoID := range repo.rows[docID] {
		parent, ok := idx.ParentOf(geoID)
		if !ok {
			continue
		}
		_, parentAssigned := repo.rows[docID][parent]
		assert.Falsef(t, parentAssigned, "parent %s and child %s both assigned", parent, geoID)
	}
}

func TestShatterHealRoundTrip(t *testing.T) {
	svc, repo, docID := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertAssignments(ctx, docID, []AssignmentInput{{GeoID: "B", Zone: intPtr(2)}})
	require.NoError(t, err)

	shattered, err := svc.Shatter(ctx, docID, []string{"B"})
	require.NoError(t, err)
	assert.Len(t, shattered.Children, 3)
	for _, child := range shattered.Children {
		require.NotNil(t, child.Zone)
		assert.Equal(t, 2, *child.Zone)
	}
	_, parentPresent := repo.rows[docID]["B"]
	assert.False(t, parentPresent)
	assertFrontier(t, repo, docID)

	healed, err := svc.Heal(ctx, docID, []string{"b", "c", "d"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, healed.HealedGeoIDs)

	rows, _ := repo.Read(ctx, docID)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, *rows["B"])
	assertFrontier(t, repo, docID)
}

func TestShatterIsIdempotentPerParent(t *testing.T) {
	svc, repo, docID := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertAssignments(ctx, docID, []AssignmentInput{{GeoID: "A", Zone: intPtr(1)}})
	require.NoError(t, err)

	first, err := svc.Shatter(ctx, docID, []string{"A"})
	require.NoError(t, err)
	assert.Len(t, first.Children, 2)

	second, err := svc.Shatter(ctx, docID, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, second.Children)

	rows, _ := repo.Read(ctx, docID)
	assert.Len(t, rows, 2)
}

func TestShatterUnassignedParent(t *testing.T) {
	svc, repo, docID := newTestService(t)

	result, err := svc.Shatter(context.Background(), docID, []string{"A"})
	require.NoError(t, err)
	assert.Len(t, result.Children, 2)
	for _, child := range result.Children {
		assert.Nil(t, child.Zone)
	}
	assertFrontier(t, repo, docID)
}

func TestShatterUnknownParent(t *testing.T) {
	svc, _, docID := newTestService(t)

	_, err := svc.Shatter(context.Background(), docID, []string{"nope"})
	assert.ErrorIs(t, err, ErrNoSuchParent)
}

func TestShatterOnFlatMap(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := NewService(repo, newFakeGeoRepo(), nil, nil, false)
	doc, err := svc.CreateDocument(context.Background(), "flat")
	require.NoError(t, err)

	_, err = svc.Shatter(context.Background(), doc.ID, []string{"A"})
	assert.ErrorIs(t, err, ErrNotShatterable)
}

func TestHealLeavesPartialParentsShattered(t *testing.T) {
	svc, repo, docID := newTestService(t)
	ctx := context.Background()

	// only two of B's three children carry zone 3
	_, err := svc.UpsertAssignments(ctx, docID, []AssignmentInput{
		{GeoID: "b", Zone: intPtr(3)},
		{GeoID: "c", Zone: intPtr(3)},
	})
	require.NoError(t, err)

	healed, err := svc.Heal(ctx, docID, []string{"b", "c"}, 3)
	require.NoError(t, err)
	assert.Empty(t, healed.HealedGeoIDs)

	rows, _ := repo.Read(ctx, docID)
	assert.Len(t, rows, 2) // untouched
}

func TestHealRejectsUnknownChild(t *testing.T) {
	svc, _, docID := newTestService(t)

	_, err := svc.Heal(context.Background(), docID, []string{"orphan"}, 1)
	assert.ErrorIs(t, err, ErrCorruptHierarchy)
}

func TestImportScenario(t *testing.T) {
	svc, repo, docID := newTestService(t)

	result, err := svc.Import(context.Background(), docID, []ImportRow{
		{GeoID: "a", ZoneLabel: "1"},
		{GeoID: "b", ZoneLabel: "2"},
		{GeoID: "c", ZoneLabel: "2"},
		{GeoID: "d", ZoneLabel: "2"},
		{GeoID: "e", ZoneLabel: "1"},
		{GeoID: "f", ZoneLabel: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Inserted)

	rows, _ := repo.Read(context.Background(), docID)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, *rows["A"])
	assert.Equal(t, 2, *rows["B"])
	assert.Equal(t, 3, *rows["f"])
	assertFrontier(t, repo, docID)
}

func TestImportIsIdempotent(t *testing.T) {
	svc, repo, docID := newTestService(t)
	ctx := context.Background()

	input := []ImportRow{
		{GeoID: "a", ZoneLabel: "north"},
		{GeoID: "e", ZoneLabel: "north"},
		{GeoID: "f", ZoneLabel: "south"},
	}

	_, err := svc.Import(ctx, docID, input)
	require.NoError(t, err)
	first, _ := repo.Read(ctx, docID)

	_, err = svc.Import(ctx, docID, input)
	require.NoError(t, err)
	second, _ := repo.Read(ctx, docID)

	assert.Equal(t, first, second)
}

func TestImportReplacesExistingAssignments(t *testing.T) {
	svc, repo, docID := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertAssignments(ctx, docID, []AssignmentInput{{GeoID: "B", Zone: intPtr(1)}})
	require.NoError(t, err)

	// b and c without d cannot heal back to B, so they land at child
	// level; the old parent row must not survive next to them
	_, err = svc.Import(ctx, docID, []ImportRow{
		{GeoID: "b", ZoneLabel: "2"},
		{GeoID: "c", ZoneLabel: "2"},
	})
	require.NoError(t, err)

	rows, _ := repo.Read(ctx, docID)
	assert.NotContains(t, rows, "B")
	require.Len(t, rows, 2)
	assert.Equal(t, 1, *rows["b"])
	assert.Equal(t, 1, *rows["c"])
	assertFrontier(t, repo, docID)
}

func TestDuplicateIntoConflict(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := NewService(repo, newFakeGeoRepo(), nil, nil, false)
	ctx := context.Background()

	from, err := svc.CreateDocument(ctx, "m1")
	require.NoError(t, err)
	to, err := svc.CreateDocument(ctx, "m1")
	require.NoError(t, err)

	_, err = svc.UpsertAssignments(ctx, from.ID, []AssignmentInput{{GeoID: "A", Zone: intPtr(1)}})
	require.NoError(t, err)

	count, err := svc.Duplicate(ctx, from.ID, to.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// second copy hits the uniqueness constraint
	_, err = svc.Duplicate(ctx, from.ID, to.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpsertDropsMalformedRows(t *testing.T) {
	svc, _, docID := newTestService(t)

	result, err := svc.UpsertAssignments(context.Background(), docID, []AssignmentInput{
		{GeoID: "A", Zone: intPtr(1)},
		{GeoID: "B", Zone: intPtr(-4)},
		{GeoID: "", Zone: intPtr(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Count)
	assert.Equal(t, 2, result.Dropped)
}

func TestUpsertAllMalformedLeavesDocumentUntouched(t *testing.T) {
	svc, repo, docID := newTestService(t)
	ctx := context.Background()

	before := repo.docs[docID].UpdatedAt

	result, err := svc.UpsertAssignments(ctx, docID, []AssignmentInput{
		{GeoID: "", Zone: intPtr(1)},
		{GeoID: "A", Zone: intPtr(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Count)
	assert.Equal(t, 2, result.Dropped)

	// the reported timestamp is the stored one, not a fresh clock read
	assert.Equal(t, before, result.UpdatedAt)
	assert.Equal(t, before, repo.docs[docID].UpdatedAt)
	rows, _ := repo.Read(ctx, docID)
	assert.Empty(t, rows)
}

func TestUnionsRecomputeWhenStale(t *testing.T) {
	svc, _, docID := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertAssignments(ctx, docID, []AssignmentInput{
		{GeoID: "A", Zone: intPtr(1)},
		{GeoID: "B", Zone: intPtr(1)},
		{GeoID: "C", Zone: intPtr(2)},
	})
	require.NoError(t, err)

	unions, err := svc.Unions(ctx, docID)
	require.NoError(t, err)
	require.Len(t, unions, 2)

	sort.Slice(unions, func(i, j int) bool { return unions[i].Zone < unions[j].Zone })
	assert.Equal(t, 2, unions[0].UnitCount)
	assert.Equal(t, int64(200), unions[0].TotalPop)
	assert.Equal(t, 1, unions[1].UnitCount)
}
