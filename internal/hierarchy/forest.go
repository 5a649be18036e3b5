// Package hierarchy maintains the campus forest: ordered siblings,
// cycle-safe reparenting and cascading delete planning.
//
// A Forest is an immutable arena built from the current campus collection.
// Mutating operations never touch the arena or its input; they return the
// campuses that must be written back to the store.
package hierarchy

import (
	"sort"
	"strings"

	"campuscore/pkg/domain"
)

// OrderGap is the spacing between sibling order keys assigned by the forest.
const OrderGap int64 = 1024

// Direction selects the neighbour used by Reorder.
type Direction string

// Reorder directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Forest indexes campuses by id and by parent.
type Forest struct {
	nodes    map[string]domain.Campus
	children map[string][]string
}

// Node is a campus with its ordered sub-campuses.
type Node struct {
	Campus   domain.Campus `json:"campus"`
	Children []Node        `json:"children,omitempty"`
}

// NewForest builds the arena. Campuses whose parent is missing are indexed
// as roots so that dangling references never hide a site.
func NewForest(campuses []domain.Campus) *Forest {
	f := &Forest{
		nodes:    make(map[string]domain.Campus, len(campuses)),
		children: make(map[string][]string),
	}
	for _, c := range campuses {
		f.nodes[c.ID] = cloneCampus(c)
	}
	for id := range f.nodes {
		parent := f.parentOf(id)
		f.children[parent] = append(f.children[parent], id)
	}
	for parent := range f.children {
		f.sortGroup(f.children[parent])
	}
	return f
}

func (f *Forest) parentOf(id string) string {
	c := f.nodes[id]
	key := c.ParentKey()
	if key == "" {
		return ""
	}
	if _, ok := f.nodes[key]; !ok {
		return ""
	}
	return key
}

func (f *Forest) sortGroup(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := f.nodes[ids[i]], f.nodes[ids[j]]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// Get returns the campus with the given id.
func (f *Forest) Get(id string) (domain.Campus, bool) {
	c, ok := f.nodes[id]
	if !ok {
		return domain.Campus{}, false
	}
	return cloneCampus(c), true
}

// Roots returns root campuses in sibling order.
func (f *Forest) Roots() []domain.Campus {
	return f.Children("")
}

// Children returns the ordered direct children of id. The empty id lists roots.
func (f *Forest) Children(id string) []domain.Campus {
	ids := f.children[id]
	out := make([]domain.Campus, 0, len(ids))
	for _, child := range ids {
		out = append(out, cloneCampus(f.nodes[child]))
	}
	return out
}

// Siblings returns the ordered group containing id, including id itself.
func (f *Forest) Siblings(id string) []domain.Campus {
	if _, ok := f.nodes[id]; !ok {
		return nil
	}
	return f.Children(f.parentOf(id))
}

// Descendants returns the ids of every campus below id, breadth first.
// The visited set keeps traversal finite on malformed input.
func (f *Forest) Descendants(id string) []string {
	visited := map[string]struct{}{id: {}}
	queue := append([]string(nil), f.children[id]...)
	var out []string
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, seen := visited[next]; seen {
			continue
		}
		visited[next] = struct{}{}
		out = append(out, next)
		queue = append(queue, f.children[next]...)
	}
	return out
}

// IsDescendant reports whether candidate lies strictly below id.
func (f *Forest) IsDescendant(id, candidate string) bool {
	for _, d := range f.Descendants(id) {
		if d == candidate {
			return true
		}
	}
	return false
}

// Path returns the ancestor chain of id, root first and ending with id.
// Unknown ids yield nil.
func (f *Forest) Path(id string) []domain.Campus {
	if _, ok := f.nodes[id]; !ok {
		return nil
	}
	var chain []domain.Campus
	visited := make(map[string]struct{})
	for cur := id; cur != ""; cur = f.parentOf(cur) {
		if _, seen := visited[cur]; seen {
			break
		}
		visited[cur] = struct{}{}
		chain = append(chain, cloneCampus(f.nodes[cur]))
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// PathString joins the names along Path with sep.
func (f *Forest) PathString(id, sep string) string {
	path := f.Path(id)
	names := make([]string, len(path))
	for i, c := range path {
		names[i] = c.Name
	}
	return strings.Join(names, sep)
}

// Tree returns the forest as nested nodes in sibling order.
func (f *Forest) Tree() []Node {
	visited := make(map[string]struct{})
	var build func(parent string) []Node
	build = func(parent string) []Node {
		var nodes []Node
		for _, id := range f.children[parent] {
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			nodes = append(nodes, Node{Campus: cloneCampus(f.nodes[id]), Children: build(id)})
		}
		return nodes
	}
	return build("")
}

// Campuses returns every campus in depth-first tree order. Campuses that are
// unreachable from a root (only possible with a pre-existing cycle) follow,
// sorted by id.
func (f *Forest) Campuses() []domain.Campus {
	out := make([]domain.Campus, 0, len(f.nodes))
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			out = append(out, n.Campus)
			walk(n.Children)
		}
	}
	walk(f.Tree())
	if len(out) == len(f.nodes) {
		return out
	}
	seen := make(map[string]struct{}, len(out))
	for _, c := range out {
		seen[c.ID] = struct{}{}
	}
	var rest []string
	for id := range f.nodes {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, cloneCampus(f.nodes[id]))
	}
	return out
}

// NextOrder returns an order key that places a new campus after every
// existing child of parent.
func (f *Forest) NextOrder(parent string) int64 {
	ids := f.children[parent]
	if len(ids) == 0 {
		return OrderGap
	}
	var maxKey int64
	for _, id := range ids {
		if k := f.nodes[id].OrderIndex; k > maxKey {
			maxKey = k
		}
	}
	return maxKey + OrderGap
}

func cloneCampus(c domain.Campus) domain.Campus {
	cp := c
	if c.ParentID != nil {
		parent := *c.ParentID
		cp.ParentID = &parent
	}
	return cp
}

// With returns a new forest with the given campuses inserted or replaced.
func (f *Forest) With(updates ...domain.Campus) *Forest {
	merged := make(map[string]domain.Campus, len(f.nodes)+len(updates))
	for id, c := range f.nodes {
		merged[id] = c
	}
	for _, c := range updates {
		merged[c.ID] = c
	}
	return NewForest(mapValues(merged))
}

// Without returns a new forest lacking the given campuses.
func (f *Forest) Without(ids ...string) *Forest {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := make(map[string]domain.Campus, len(f.nodes))
	for id, c := range f.nodes {
		if _, ok := drop[id]; !ok {
			kept[id] = c
		}
	}
	return NewForest(mapValues(kept))
}

func mapValues(m map[string]domain.Campus) []domain.Campus {
	out := make([]domain.Campus, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}
