package core

import (
	"context"
	"time"

	"campuscore/pkg/domain"
)

// Seed loads the demo dataset into an empty store: four campuses (one
// nested), four bathrooms and two tickets. It reports false and writes
// nothing when any campus already exists.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	seeded := false
	err := s.run(ctx, "seed", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			if len(tx.Snapshot().ListCampuses()) > 0 {
				return nil
			}
			for _, c := range seedCampuses() {
				if _, err := tx.CreateCampus(c); err != nil {
					return err
				}
			}
			for _, b := range seedBathrooms() {
				if _, err := tx.CreateBathroom(b); err != nil {
					return err
				}
			}
			for _, t := range seedTickets(s.now()) {
				if _, err := tx.CreateTicket(t); err != nil {
					return err
				}
			}
			seeded = true
			return nil
		})
	})
	return seeded, err
}

func seedCampuses() []domain.Campus {
	parent := "c2"
	return []domain.Campus{
		{Base: domain.Base{ID: "c1"}, Name: "Science Park (Demo)", OrderIndex: 1024},
		{Base: domain.Base{ID: "c2"}, Name: "Historic Villa (Demo)", OrderIndex: 2048},
		{Base: domain.Base{ID: "c3"}, Name: "Economics Campus", OrderIndex: 3072},
		{Base: domain.Base{ID: "c4"}, Name: "Villa Annex", ParentID: &parent, OrderIndex: 1024},
	}
}

func seedBathrooms() []domain.Bathroom {
	return []domain.Bathroom{
		{Base: domain.Base{ID: "b1"}, CampusID: "c1", Floor: "1", Code: "WC-S101", Gender: domain.GenderMale, Notes: "Key at the front desk"},
		{Base: domain.Base{ID: "b2"}, CampusID: "c1", Floor: "1", Code: "WC-S102", Gender: domain.GenderFemale},
		{Base: domain.Base{ID: "b3"}, CampusID: "c2", Floor: "GF", Code: "WC-V01", Gender: domain.GenderDisabled, Notes: "Access via the side ramp"},
		{Base: domain.Base{ID: "b4"}, CampusID: "c4", Floor: "GF", Code: "WC-DEP-01", Gender: domain.GenderAllGender},
	}
}

func seedTickets(now time.Time) []domain.Ticket {
	bathroom := "b1"
	cost := 1200.0
	return []domain.Ticket{
		{
			Base:         domain.Base{ID: "t1", CreatedAt: now.Add(-24 * time.Hour)},
			Type:         domain.TicketMaintenance,
			CampusID:     "c1",
			BathroomID:   &bathroom,
			CampusName:   "Science Park (Demo)",
			BathroomCode: "WC-S101",
			Title:        "Left basin tap leaking",
			Description:  "The tap drips constantly even when closed.",
			Priority:     domain.PriorityMedium,
			Status:       domain.TicketOpen,
			Notes:        []domain.TicketNote{},
		},
		{
			Base:          domain.Base{ID: "t2", CreatedAt: now.Add(-48 * time.Hour)},
			Type:          domain.TicketWorkRequest,
			CampusID:      "c2",
			CampusName:    "Historic Villa (Demo)",
			Title:         "Install electric hand dryers",
			Description:   "Replace paper dispensers with air dryers in every ground floor restroom.",
			Priority:      domain.PriorityLow,
			EstimatedCost: &cost,
			Status:        domain.TicketInProgress,
			Notes:         []domain.TicketNote{{ID: "n1", Date: now, Text: "Requested supplier quotes.", Author: "admin"}},
		},
	}
}
