package core

import (
	"context"
	"strings"

	"campuscore/internal/lifecycle"
	"campuscore/pkg/domain"
)

// ListTickets returns every ticket with refreshed display labels.
func (s *Service) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.resolvedTickets(), nil
}

// GetTicket returns ticket id with refreshed display labels.
func (s *Service) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return domain.Ticket{}, err
	}
	for _, t := range snap.resolvedTickets() {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Ticket{}, domain.NotFoundError{Entity: domain.EntityTicket, ID: id}
}

// ActiveWork returns the tickets that are not closed, newest first.
func (s *Service) ActiveWork(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.ListTickets(ctx)
	if err != nil {
		return nil, err
	}
	return lifecycle.ActiveWork(tickets), nil
}

// Archive returns closed tickets, newest first.
func (s *Service) Archive(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.ListTickets(ctx)
	if err != nil {
		return nil, err
	}
	return lifecycle.Archive(tickets), nil
}

// ActiveTickets feeds the active work report.
func (s *Service) ActiveTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.ActiveWork(ctx)
}

// CensusData feeds the census report.
func (s *Service) CensusData(ctx context.Context) ([]domain.Campus, []domain.Bathroom, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snap.campuses, snap.bathrooms, nil
}

// CreateWorkRequest raises a manual ticket. The campus and optional bathroom
// must exist; a bathroom must belong to the campus.
func (s *Service) CreateWorkRequest(ctx context.Context, in lifecycle.WorkRequestInput) (domain.Ticket, error) {
	var created domain.Ticket
	err := s.run(ctx, "ticket.create_work_request", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			in.CampusID = strings.TrimSpace(in.CampusID)
			if in.CampusID != "" {
				campus, ok := tx.FindCampus(in.CampusID)
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityCampus, ID: in.CampusID}
				}
				in.CampusName = campus.Name
			}
			if in.BathroomID != nil && *in.BathroomID != "" {
				bathroom, ok := tx.FindBathroom(*in.BathroomID)
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityBathroom, ID: *in.BathroomID}
				}
				if bathroom.CampusID != in.CampusID {
					return domain.ValidationError{Field: "bathroom_id", Reason: "bathroom belongs to another campus"}
				}
				in.BathroomCode = bathroom.Code
			}
			ticket, err := lifecycle.NewWorkRequest(s.newID(), in, s.now())
			if err != nil {
				return err
			}
			created, err = tx.CreateTicket(ticket)
			return err
		})
	})
	return created, err
}

// AppendNote adds a note to ticket id. A blank author signs as the default
// author.
func (s *Service) AppendNote(ctx context.Context, id, text, author string) (domain.Ticket, error) {
	return s.updateTicket(ctx, "ticket.append_note", id, func(t domain.Ticket) (domain.Ticket, error) {
		return lifecycle.AppendNote(t, s.newID(), text, author, s.now())
	})
}

// SetTicketStatus moves ticket id to status.
func (s *Service) SetTicketStatus(ctx context.Context, id string, status domain.TicketStatus) (domain.Ticket, error) {
	return s.updateTicket(ctx, "ticket.set_status", id, func(t domain.Ticket) (domain.Ticket, error) {
		return lifecycle.SetStatus(t, status)
	})
}

// CloseTicket closes ticket id, moving it to the archive.
func (s *Service) CloseTicket(ctx context.Context, id string) (domain.Ticket, error) {
	return s.updateTicket(ctx, "ticket.close", id, func(t domain.Ticket) (domain.Ticket, error) {
		return lifecycle.Close(t), nil
	})
}

func (s *Service) updateTicket(ctx context.Context, op, id string, change func(domain.Ticket) (domain.Ticket, error)) (domain.Ticket, error) {
	var updated domain.Ticket
	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateTicket(id, func(t *domain.Ticket) error {
				next, err := change(*t)
				if err != nil {
					return err
				}
				*t = next
				return nil
			})
			return err
		})
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return s.GetTicket(ctx, updated.ID)
}

// DeleteTicket removes ticket id. The inspection that raised it keeps its
// linkage flag.
func (s *Service) DeleteTicket(ctx context.Context, id string) error {
	return s.run(ctx, "ticket.delete", func(ctx context.Context) error {
		return s.transact(ctx, func(tx domain.Transaction) error {
			return tx.DeleteTicket(id)
		})
	})
}

// Dashboard summarises bathrooms and tickets.
func (s *Service) Dashboard(ctx context.Context) (lifecycle.Dashboard, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return lifecycle.Dashboard{}, err
	}
	return lifecycle.Summarize(snap.bathrooms, snap.resolvedTickets()), nil
}
