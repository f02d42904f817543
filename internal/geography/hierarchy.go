package geography

// HierarchyIndex is the immutable parent/child relation for one map,
// built once from ParentChildEdge rows. For non-shatterable maps the
// index is empty and shattering operations are rejected upstream.
type HierarchyIndex struct {
	children map[string][]string
	parents  map[string]string
}

func NewHierarchyIndex(edges []ParentChildEdge) *HierarchyIndex {
	idx := &HierarchyIndex{
		children: make(map[string][]string),
		parents:  make(map[string]string, len(edges)),
	}
	for _, e := range edges {
		idx.children[e.ParentPath] = append(idx.children[e.ParentPath], e.ChildPath)
		idx.parents[e.ChildPath] = e.ParentPath
	}
	return idx
}

// ChildrenOf returns the child geo_ids composing a parent, nil if the
// geo_id is not a known parent.
func (idx *HierarchyIndex) ChildrenOf(parentPath string) []string {
	return idx.children[parentPath]
}

// ParentOf returns the parent geo_id owning a child.
func (idx *HierarchyIndex) ParentOf(childPath string) (string, bool) {
	p, ok := idx.parents[childPath]
	return p, ok
}

// IsParent reports whether the geo_id exists at parent granularity.
func (idx *HierarchyIndex) IsParent(geoID string) bool {
	_, ok := idx.children[geoID]
	return ok
}

func (idx *HierarchyIndex) Empty() bool {
	return len(idx.parents) == 0
}
