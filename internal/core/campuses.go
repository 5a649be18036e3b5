package core

import (
	"context"

	"campuscore/internal/hierarchy"
	"campuscore/pkg/domain"
)

// ListCampuses returns every campus in depth-first tree order.
func (s *Service) ListCampuses(ctx context.Context) ([]domain.Campus, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	return f.Campuses(), nil
}

// CampusTree returns the campus forest as nested nodes.
func (s *Service) CampusTree(ctx context.Context) ([]hierarchy.Node, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	return f.Tree(), nil
}

// CampusPath returns the root-first ancestor chain of id, id included.
func (s *Service) CampusPath(ctx context.Context, id string) ([]domain.Campus, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := f.Get(id); !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
	}
	return f.Path(id), nil
}

// AddCampus creates a campus under parentID, or a root when parentID is nil.
func (s *Service) AddCampus(ctx context.Context, name string, parentID *string) (domain.Campus, error) {
	var created domain.Campus
	err := s.run(ctx, "campus.add", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			planned, err := hierarchy.NewForest(tx.Snapshot().ListCampuses()).Add(s.newID(), name, parentID)
			if err != nil {
				return err
			}
			created, err = tx.CreateCampus(planned)
			return err
		})
	})
	return created, err
}

// RenameCampus changes the display name of id. Ticket labels follow on the
// next read.
func (s *Service) RenameCampus(ctx context.Context, id, name string) (domain.Campus, error) {
	var updated domain.Campus
	err := s.run(ctx, "campus.rename", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			planned, err := hierarchy.NewForest(tx.Snapshot().ListCampuses()).Rename(id, name)
			if err != nil {
				return err
			}
			updated, err = tx.UpdateCampus(id, func(c *domain.Campus) error {
				c.Name = planned.Name
				return nil
			})
			return err
		})
	})
	return updated, err
}

// ReparentCampus moves id under parentID, or to the root level when parentID
// is nil. Cycles are rejected before anything is written.
func (s *Service) ReparentCampus(ctx context.Context, id string, parentID *string) (domain.Campus, error) {
	var moved domain.Campus
	err := s.run(ctx, "campus.reparent", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			planned, changed, err := hierarchy.NewForest(tx.Snapshot().ListCampuses()).Reparent(id, parentID)
			if err != nil {
				return err
			}
			if !changed {
				moved = planned
				return nil
			}
			moved, err = tx.UpdateCampus(id, func(c *domain.Campus) error {
				c.ParentID = planned.ParentID
				c.OrderIndex = planned.OrderIndex
				return nil
			})
			return err
		})
	})
	return moved, err
}

// ReorderCampus swaps id with its previous or next sibling.
func (s *Service) ReorderCampus(ctx context.Context, id string, dir hierarchy.Direction) error {
	return s.run(ctx, "campus.reorder", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			changed, err := hierarchy.NewForest(tx.Snapshot().ListCampuses()).Reorder(id, dir)
			if err != nil {
				return err
			}
			return writeOrder(tx, changed)
		})
	})
}

// ReorderCampuses rewrites sibling order from the position of each id in
// ids, in a single transaction.
func (s *Service) ReorderCampuses(ctx context.Context, ids []string) error {
	return s.run(ctx, "campus.reorder_all", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			changed, err := hierarchy.NewForest(tx.Snapshot().ListCampuses()).ReorderAll(ids)
			if err != nil {
				return err
			}
			return writeOrder(tx, changed)
		})
	})
}

func writeOrder(tx domain.Transaction, changed []domain.Campus) error {
	for _, c := range changed {
		order := c.OrderIndex
		if _, err := tx.UpdateCampus(c.ID, func(cur *domain.Campus) error {
			cur.OrderIndex = order
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// CampusDeleteImpact previews the cascade of deleting id without writing.
func (s *Service) CampusDeleteImpact(ctx context.Context, id string) (hierarchy.DeletePlan, error) {
	var plan hierarchy.DeletePlan
	err := s.run(ctx, "campus.delete_impact", func(ctx context.Context) error {
		snap, err := s.load(ctx)
		if err != nil {
			return err
		}
		plan, err = hierarchy.NewForest(snap.campuses).PlanDelete(id, snap.bathrooms, snap.inspections, snap.tickets)
		return err
	})
	return plan, err
}

// DeleteCampus removes id with all descendants, their bathrooms and those
// bathrooms' inspections in one transaction. Tickets referencing any removed
// asset are kept, flagged AssetRemoved, with their last known labels.
func (s *Service) DeleteCampus(ctx context.Context, id string) (hierarchy.DeletePlan, error) {
	var plan hierarchy.DeletePlan
	err := s.run(ctx, "campus.delete", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			view := tx.Snapshot()
			campuses, bathrooms := view.ListCampuses(), view.ListBathrooms()
			forest := hierarchy.NewForest(campuses)
			var err error
			plan, err = forest.PlanDelete(id, bathrooms, view.ListInspections(), view.ListTickets())
			if err != nil {
				return err
			}
			if err := orphanTickets(tx, plan.TicketIDs, campuses, bathrooms); err != nil {
				return err
			}
			for _, inspectionID := range plan.InspectionIDs {
				if err := tx.DeleteInspection(inspectionID); err != nil {
					return err
				}
			}
			for _, bathroomID := range plan.BathroomIDs {
				if err := tx.DeleteBathroom(bathroomID); err != nil {
					return err
				}
			}
			// Deepest campuses first so no child outlives its parent.
			for i := len(plan.CampusIDs) - 1; i >= 0; i-- {
				if err := tx.DeleteCampus(plan.CampusIDs[i]); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return plan, err
}

// orphanTickets freezes the current labels of ticketIDs and marks them as
// referencing a removed asset.
func orphanTickets(tx domain.Transaction, ticketIDs []string, campuses []domain.Campus, bathrooms []domain.Bathroom) error {
	campusNames := make(map[string]string, len(campuses))
	for _, c := range campuses {
		campusNames[c.ID] = c.Name
	}
	bathroomCodes := make(map[string]string, len(bathrooms))
	for _, b := range bathrooms {
		bathroomCodes[b.ID] = b.Code
	}
	for _, ticketID := range ticketIDs {
		if _, err := tx.UpdateTicket(ticketID, func(t *domain.Ticket) error {
			if name, ok := campusNames[t.CampusID]; ok {
				t.CampusName = name
			}
			if t.BathroomID != nil {
				if code, ok := bathroomCodes[*t.BathroomID]; ok {
					t.BathroomCode = code
				}
			}
			t.AssetRemoved = true
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
