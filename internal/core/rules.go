package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"campuscore/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in integrity
// rules.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(CampusAcyclicRule())
	engine.Register(InspectionImmutableRule())
	engine.Register(BathroomCodeRule())
	return engine
}

// CampusAcyclicRule blocks any campus write that leaves a parent cycle.
func CampusAcyclicRule() domain.Rule { return campusAcyclicRule{} }

type campusAcyclicRule struct{}

func (campusAcyclicRule) Name() string { return "campus_acyclic" }

func (r campusAcyclicRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityCampus || change.Action == domain.ActionDelete {
			continue
		}
		campus, ok := change.After.(domain.Campus)
		if !ok {
			continue
		}
		visited := map[string]struct{}{campus.ID: {}}
		current := campus
		for current.ParentID != nil {
			parentID := *current.ParentID
			if _, seen := visited[parentID]; seen {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("campus %s is part of a parent cycle", campus.ID),
					Entity:   domain.EntityCampus,
					EntityID: campus.ID,
				})
				break
			}
			visited[parentID] = struct{}{}
			parent, ok := view.FindCampus(parentID)
			if !ok {
				break
			}
			current = parent
		}
	}
	return res, nil
}

// InspectionImmutableRule blocks edits to an inspection other than setting
// its ticket linkage once.
func InspectionImmutableRule() domain.Rule { return inspectionImmutableRule{} }

type inspectionImmutableRule struct{}

func (inspectionImmutableRule) Name() string { return "inspection_immutable" }

func (r inspectionImmutableRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityInspection || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := change.Before.(domain.Inspection)
		after, okAfter := change.After.(domain.Inspection)
		if !okBefore || !okAfter {
			continue
		}
		var reason string
		switch {
		case before.BathroomID != after.BathroomID:
			reason = "bathroom cannot change"
		case !before.Date.Equal(after.Date):
			reason = "date cannot change"
		case !slices.Equal(before.Records, after.Records):
			reason = "findings cannot change"
		case before.TicketCreated && !after.TicketCreated:
			reason = "ticket linkage cannot be cleared"
		case before.TicketID != nil && (after.TicketID == nil || *after.TicketID != *before.TicketID):
			reason = "ticket linkage is set at most once"
		}
		if reason != "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("inspection %s: %s", after.ID, reason),
				Entity:   domain.EntityInspection,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// BathroomCodeRule warns when a campus holds two bathrooms with the same
// code.
func BathroomCodeRule() domain.Rule { return bathroomCodeRule{} }

type bathroomCodeRule struct{}

func (bathroomCodeRule) Name() string { return "bathroom_code_unique" }

func (r bathroomCodeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	var touched []domain.Bathroom
	for _, change := range changes {
		if change.Entity != domain.EntityBathroom || change.Action == domain.ActionDelete {
			continue
		}
		if b, ok := change.After.(domain.Bathroom); ok {
			touched = append(touched, b)
		}
	}
	if len(touched) == 0 {
		return res, nil
	}
	all := view.ListBathrooms()
	for _, b := range touched {
		for _, other := range all {
			if other.ID != b.ID && other.CampusID == b.CampusID && strings.EqualFold(other.Code, b.Code) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("bathroom code %s already used by %s in campus %s", b.Code, other.ID, b.CampusID),
					Entity:   domain.EntityBathroom,
					EntityID: b.ID,
				})
				break
			}
		}
	}
	return res, nil
}
