package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"campuscore/internal/drafting"
	"campuscore/internal/lifecycle"
	"campuscore/pkg/domain"
)

// BathroomInput carries the editable fields of a bathroom.
type BathroomInput struct {
	CampusID string        `json:"campus_id"`
	Floor    string        `json:"floor"`
	Code     string        `json:"code"`
	Gender   domain.Gender `json:"gender"`
	Notes    string        `json:"notes"`
}

func (in BathroomInput) normalize() (BathroomInput, error) {
	in.CampusID = strings.TrimSpace(in.CampusID)
	in.Floor = strings.TrimSpace(in.Floor)
	in.Code = strings.TrimSpace(in.Code)
	in.Notes = strings.TrimSpace(in.Notes)
	switch {
	case in.CampusID == "":
		return in, domain.ValidationError{Field: "campus_id", Reason: "required"}
	case in.Floor == "":
		return in, domain.ValidationError{Field: "floor", Reason: "required"}
	case in.Code == "":
		return in, domain.ValidationError{Field: "code", Reason: "required"}
	}
	if in.Gender == "" {
		in.Gender = domain.GenderAllGender
	}
	if !in.Gender.Valid() {
		return in, domain.ValidationError{Field: "gender", Reason: "unknown gender " + string(in.Gender)}
	}
	return in, nil
}

// ListBathrooms returns the bathrooms of campusID, or all bathrooms when
// campusID is empty, ordered by floor then code.
func (s *Service) ListBathrooms(ctx context.Context, campusID string) ([]domain.Bathroom, error) {
	var out []domain.Bathroom
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		for _, b := range v.ListBathrooms() {
			if campusID == "" || b.CampusID == campusID {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Floor != out[j].Floor {
			return out[i].Floor < out[j].Floor
		}
		return out[i].Code < out[j].Code
	})
	return out, err
}

// GetBathroom returns bathroom id.
func (s *Service) GetBathroom(ctx context.Context, id string) (domain.Bathroom, error) {
	var found domain.Bathroom
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		b, ok := v.FindBathroom(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityBathroom, ID: id}
		}
		found = b
		return nil
	})
	return found, err
}

// CreateBathroom adds a bathroom to an existing campus.
func (s *Service) CreateBathroom(ctx context.Context, in BathroomInput) (domain.Bathroom, error) {
	var created domain.Bathroom
	err := s.run(ctx, "bathroom.create", func(ctx context.Context) error {
		in, err := in.normalize()
		if err != nil {
			return err
		}
		return s.transact(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateBathroom(domain.Bathroom{
				Base:     domain.Base{ID: s.newID()},
				CampusID: in.CampusID,
				Floor:    in.Floor,
				Code:     in.Code,
				Gender:   in.Gender,
				Notes:    in.Notes,
			})
			return err
		})
	})
	return created, err
}

// UpdateBathroom replaces the editable fields of bathroom id. Moving it to
// another campus is allowed.
func (s *Service) UpdateBathroom(ctx context.Context, id string, in BathroomInput) (domain.Bathroom, error) {
	var updated domain.Bathroom
	err := s.run(ctx, "bathroom.update", func(ctx context.Context) error {
		in, err := in.normalize()
		if err != nil {
			return err
		}
		return s.transact(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateBathroom(id, func(b *domain.Bathroom) error {
				b.CampusID = in.CampusID
				b.Floor = in.Floor
				b.Code = in.Code
				b.Gender = in.Gender
				b.Notes = in.Notes
				return nil
			})
			return err
		})
	})
	return updated, err
}

// DeleteBathroom removes id and its inspections. Referencing tickets are
// kept and flagged AssetRemoved.
func (s *Service) DeleteBathroom(ctx context.Context, id string) error {
	return s.run(ctx, "bathroom.delete", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			view := tx.Snapshot()
			if _, ok := view.FindBathroom(id); !ok {
				return domain.NotFoundError{Entity: domain.EntityBathroom, ID: id}
			}
			var ticketIDs []string
			for _, t := range view.ListTickets() {
				if t.BathroomID != nil && *t.BathroomID == id {
					ticketIDs = append(ticketIDs, t.ID)
				}
			}
			if err := orphanTickets(tx, ticketIDs, view.ListCampuses(), view.ListBathrooms()); err != nil {
				return err
			}
			for _, in := range view.ListInspections() {
				if in.BathroomID == id {
					if err := tx.DeleteInspection(in.ID); err != nil {
						return err
					}
				}
			}
			return tx.DeleteBathroom(id)
		})
	})
}

// ListInspections returns the inspections of bathroomID, or all inspections
// when bathroomID is empty, newest first.
func (s *Service) ListInspections(ctx context.Context, bathroomID string) ([]domain.Inspection, error) {
	var out []domain.Inspection
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		for _, in := range v.ListInspections() {
			if bathroomID == "" || in.BathroomID == bathroomID {
				out = append(out, in)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// InspectionOutcome is the result of SubmitInspection. Ticket is set when a
// maintenance ticket was raised. TicketErr reports a failure to raise it; the
// inspection itself is stored regardless.
type InspectionOutcome struct {
	Inspection domain.Inspection `json:"inspection"`
	Ticket     *domain.Ticket    `json:"ticket,omitempty"`
	TicketErr  error             `json:"-"`
}

// SubmitInspection stores an inspection of bathroomID. When any finding is a
// warning or critical, a ticket draft is generated outside of any
// transaction and a second transaction creates the maintenance ticket and
// links it to the inspection.
func (s *Service) SubmitInspection(ctx context.Context, bathroomID string, date time.Time, records []domain.InspectionRecord) (InspectionOutcome, error) {
	var out InspectionOutcome
	err := s.run(ctx, "inspection.submit", func(ctx context.Context) error {
		if date.IsZero() {
			date = s.now()
		}
		inspection, err := lifecycle.NewInspection(s.newID(), bathroomID, date, records)
		if err != nil {
			return err
		}
		if err := s.transact(ctx, func(tx domain.Transaction) error {
			var err error
			out.Inspection, err = tx.CreateInspection(inspection)
			return err
		}); err != nil {
			return err
		}
		if !lifecycle.NeedsTicket(out.Inspection.Records) {
			return nil
		}
		ticket, linked, err := s.raiseMaintenanceTicket(ctx, out.Inspection)
		if err != nil {
			out.TicketErr = err
			s.logger.ErrorContext(ctx, "maintenance ticket not created", "inspection", out.Inspection.ID, "error", err)
			return nil
		}
		out.Ticket = &ticket
		out.Inspection = linked
		return nil
	})
	return out, err
}

func (s *Service) raiseMaintenanceTicket(ctx context.Context, inspection domain.Inspection) (domain.Ticket, domain.Inspection, error) {
	var bathroom domain.Bathroom
	var campus domain.Campus
	if err := s.store.View(ctx, func(v domain.TransactionView) error {
		var ok bool
		if bathroom, ok = v.FindBathroom(inspection.BathroomID); !ok {
			return domain.NotFoundError{Entity: domain.EntityBathroom, ID: inspection.BathroomID}
		}
		if campus, ok = v.FindCampus(bathroom.CampusID); !ok {
			return domain.NotFoundError{Entity: domain.EntityCampus, ID: bathroom.CampusID}
		}
		return nil
	}); err != nil {
		return domain.Ticket{}, domain.Inspection{}, err
	}

	draft := drafting.Draft(ctx, s.generator, drafting.Request{
		CampusName:   campus.Name,
		BathroomCode: bathroom.Code,
		Date:         inspection.Date,
		Failing:      lifecycle.FailingRecords(inspection.Records),
	}, s.logger)

	var ticket domain.Ticket
	var linked domain.Inspection
	err := s.transact(ctx, func(tx domain.Transaction) error {
		current, ok := tx.FindInspection(inspection.ID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityInspection, ID: inspection.ID}
		}
		// Labels are re-read in case the bathroom or campus changed while drafting.
		if b, ok := tx.FindBathroom(current.BathroomID); ok {
			bathroom = b
		}
		if c, ok := tx.FindCampus(bathroom.CampusID); ok {
			campus = c
		}
		var err error
		ticket, err = tx.CreateTicket(lifecycle.MaintenanceTicket(s.newID(), draft, current, bathroom, campus, s.now()))
		if err != nil {
			return err
		}
		relinked, err := lifecycle.LinkTicket(current, ticket.ID)
		if err != nil {
			return err
		}
		linked, err = tx.UpdateInspection(current.ID, func(in *domain.Inspection) error {
			in.TicketCreated = relinked.TicketCreated
			in.TicketID = relinked.TicketID
			return nil
		})
		return err
	})
	return ticket, linked, err
}

// DeleteInspection removes inspection id. A ticket it raised is kept.
func (s *Service) DeleteInspection(ctx context.Context, id string) error {
	return s.run(ctx, "inspection.delete", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			return tx.DeleteInspection(id)
		})
	})
}

// AssetStatus derives the inspection state of bathroom id.
func (s *Service) AssetStatus(ctx context.Context, id string) (domain.AssetStatus, error) {
	var status domain.AssetStatus
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindBathroom(id); !ok {
			return domain.NotFoundError{Entity: domain.EntityBathroom, ID: id}
		}
		status = lifecycle.DeriveAssetStatus(id, v.ListInspections())
		return nil
	})
	return status, err
}

// AssetStatuses derives the state of every bathroom of campusID, or of all
// bathrooms when campusID is empty.
func (s *Service) AssetStatuses(ctx context.Context, campusID string) ([]domain.AssetStatus, error) {
	bathrooms, err := s.ListBathrooms(ctx, campusID)
	if err != nil {
		return nil, err
	}
	inspections, err := s.ListInspections(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.AssetStatus, 0, len(bathrooms))
	for _, b := range bathrooms {
		out = append(out, lifecycle.DeriveAssetStatus(b.ID, inspections))
	}
	return out, nil
}
