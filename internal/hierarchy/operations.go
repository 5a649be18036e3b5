package hierarchy

import (
	"sort"
	"strings"

	"campuscore/pkg/domain"
)

// AddRoot plans a new root campus appended after the existing roots.
func (f *Forest) AddRoot(id, name string) (domain.Campus, error) {
	return f.Add(id, name, nil)
}

// Add plans a new campus under parentID, or a root when parentID is nil.
// The campus is appended after its future siblings.
func (f *Forest) Add(id, name string, parentID *string) (domain.Campus, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Campus{}, domain.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if strings.TrimSpace(id) == "" {
		return domain.Campus{}, domain.ValidationError{Field: "id", Reason: "must not be blank"}
	}
	if _, exists := f.nodes[id]; exists {
		return domain.Campus{}, domain.ValidationError{Field: "id", Reason: "campus " + id + " already exists"}
	}
	parent := ""
	if parentID != nil && *parentID != "" {
		if _, ok := f.nodes[*parentID]; !ok {
			return domain.Campus{}, domain.NotFoundError{Entity: domain.EntityCampus, ID: *parentID}
		}
		parent = *parentID
	}
	c := domain.Campus{
		Base:       domain.Base{ID: id},
		Name:       name,
		OrderIndex: f.NextOrder(parent),
	}
	if parent != "" {
		c.ParentID = &parent
	}
	return c, nil
}

// Rename plans a name change.
func (f *Forest) Rename(id, name string) (domain.Campus, error) {
	current, ok := f.nodes[id]
	if !ok {
		return domain.Campus{}, domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Campus{}, domain.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	updated := cloneCampus(current)
	updated.Name = name
	return updated, nil
}

// Reparent plans moving id under newParentID, or to the root level when
// newParentID is nil or empty. The bool result is false when the campus is
// already in place. Moving a campus under itself or one of its descendants
// fails with CycleError.
func (f *Forest) Reparent(id string, newParentID *string) (domain.Campus, bool, error) {
	current, ok := f.nodes[id]
	if !ok {
		return domain.Campus{}, false, domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
	}
	target := ""
	if newParentID != nil {
		target = *newParentID
	}
	if target == "" {
		if f.parentOf(id) == "" && current.IsRoot() {
			return cloneCampus(current), false, nil
		}
		updated := cloneCampus(current)
		updated.ParentID = nil
		updated.OrderIndex = f.NextOrder("")
		return updated, true, nil
	}
	if target == id || f.IsDescendant(id, target) {
		return domain.Campus{}, false, domain.CycleError{CampusID: id, TargetID: target}
	}
	if _, ok := f.nodes[target]; !ok {
		return domain.Campus{}, false, domain.NotFoundError{Entity: domain.EntityCampus, ID: target}
	}
	if current.ParentKey() == target {
		return cloneCampus(current), false, nil
	}
	updated := cloneCampus(current)
	updated.ParentID = &target
	updated.OrderIndex = f.NextOrder(target)
	return updated, true, nil
}

// Reorder swaps id with its neighbour in the given direction. It returns the
// campuses whose order key changed: none at either boundary, two in the
// common case, or the whole sibling group when existing keys collide and
// must be renumbered.
func (f *Forest) Reorder(id string, dir Direction) ([]domain.Campus, error) {
	if _, ok := f.nodes[id]; !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
	}
	if dir != Up && dir != Down {
		return nil, domain.ValidationError{Field: "direction", Reason: "must be up or down"}
	}
	group := append([]string(nil), f.children[f.parentOf(id)]...)
	idx := indexOf(group, id)
	target := idx - 1
	if dir == Down {
		target = idx + 1
	}
	if target < 0 || target >= len(group) {
		return nil, nil
	}
	if f.strictlyOrdered(group) {
		a := cloneCampus(f.nodes[group[idx]])
		b := cloneCampus(f.nodes[group[target]])
		a.OrderIndex, b.OrderIndex = b.OrderIndex, a.OrderIndex
		return []domain.Campus{a, b}, nil
	}
	group[idx], group[target] = group[target], group[idx]
	return f.renumber(group), nil
}

// ReorderAll rewrites sibling order from list position. Each parent group
// touched by ids is renumbered with the listed campuses first, in list order,
// followed by any unlisted siblings in their current order. Only campuses
// whose key changes are returned.
func (f *Forest) ReorderAll(ids []string) ([]domain.Campus, error) {
	listed := make(map[string][]string)
	var parents []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := f.nodes[id]; !ok {
			return nil, domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
		}
		if _, dup := seen[id]; dup {
			return nil, domain.ValidationError{Field: "ids", Reason: "campus " + id + " listed twice"}
		}
		seen[id] = struct{}{}
		parent := f.parentOf(id)
		if _, ok := listed[parent]; !ok {
			parents = append(parents, parent)
		}
		listed[parent] = append(listed[parent], id)
	}
	var out []domain.Campus
	for _, parent := range parents {
		group := listed[parent]
		for _, id := range f.children[parent] {
			if _, ok := seen[id]; !ok {
				group = append(group, id)
			}
		}
		out = append(out, f.renumber(group)...)
	}
	return out, nil
}

// Impact summarises what a cascading delete would remove or orphan.
type Impact struct {
	SubCampuses int `json:"sub_campuses"`
	Bathrooms   int `json:"bathrooms"`
	Inspections int `json:"inspections"`
	Tickets     int `json:"tickets"`
}

// DeletePlan lists every record affected by deleting a campus.
type DeletePlan struct {
	CampusID      string   `json:"campus_id"`
	CampusIDs     []string `json:"campus_ids"`
	BathroomIDs   []string `json:"bathroom_ids"`
	InspectionIDs []string `json:"inspection_ids"`
	// TicketIDs reference a removed campus or bathroom. They are kept and
	// flagged rather than deleted.
	TicketIDs []string `json:"ticket_ids"`
	Impact    Impact   `json:"impact"`
}

// PlanDelete computes the cascade for deleting id: the campus and all of its
// descendants, every bathroom owned by one of them, and every inspection of
// those bathrooms. Tickets pointing at any removed campus or bathroom are
// reported for orphan marking.
func (f *Forest) PlanDelete(id string, bathrooms []domain.Bathroom, inspections []domain.Inspection, tickets []domain.Ticket) (DeletePlan, error) {
	if _, ok := f.nodes[id]; !ok {
		return DeletePlan{}, domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
	}
	descendants := f.Descendants(id)
	campusSet := make(map[string]struct{}, len(descendants)+1)
	campusSet[id] = struct{}{}
	for _, d := range descendants {
		campusSet[d] = struct{}{}
	}
	plan := DeletePlan{
		CampusID:  id,
		CampusIDs: append([]string{id}, descendants...),
	}
	bathroomSet := make(map[string]struct{})
	for _, b := range bathrooms {
		if _, ok := campusSet[b.CampusID]; ok {
			bathroomSet[b.ID] = struct{}{}
			plan.BathroomIDs = append(plan.BathroomIDs, b.ID)
		}
	}
	for _, in := range inspections {
		if _, ok := bathroomSet[in.BathroomID]; ok {
			plan.InspectionIDs = append(plan.InspectionIDs, in.ID)
		}
	}
	for _, t := range tickets {
		_, campusGone := campusSet[t.CampusID]
		bathroomGone := false
		if t.BathroomID != nil {
			_, bathroomGone = bathroomSet[*t.BathroomID]
		}
		if campusGone || bathroomGone {
			plan.TicketIDs = append(plan.TicketIDs, t.ID)
		}
	}
	sort.Strings(plan.BathroomIDs)
	sort.Strings(plan.InspectionIDs)
	sort.Strings(plan.TicketIDs)
	plan.Impact = Impact{
		SubCampuses: len(descendants),
		Bathrooms:   len(plan.BathroomIDs),
		Inspections: len(plan.InspectionIDs),
		Tickets:     len(plan.TicketIDs),
	}
	return plan, nil
}

func (f *Forest) strictlyOrdered(group []string) bool {
	for i := 1; i < len(group); i++ {
		if f.nodes[group[i-1]].OrderIndex >= f.nodes[group[i]].OrderIndex {
			return false
		}
	}
	return true
}

func (f *Forest) renumber(group []string) []domain.Campus {
	var out []domain.Campus
	for i, id := range group {
		key := int64(i+1) * OrderGap
		current := f.nodes[id]
		if current.OrderIndex == key {
			continue
		}
		updated := cloneCampus(current)
		updated.OrderIndex = key
		out = append(out, updated)
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
