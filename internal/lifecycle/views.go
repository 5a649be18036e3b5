package lifecycle

import (
	"sort"

	"campuscore/pkg/domain"
)

// ActiveWork returns every ticket that is not closed, newest first.
func ActiveWork(tickets []domain.Ticket) []domain.Ticket {
	return newestFirst(tickets, func(t domain.Ticket) bool { return t.Active() })
}

// Archive returns closed tickets, newest first.
func Archive(tickets []domain.Ticket) []domain.Ticket {
	return newestFirst(tickets, func(t domain.Ticket) bool { return !t.Active() })
}

func newestFirst(tickets []domain.Ticket, keep func(domain.Ticket) bool) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CampusLoad counts the assets and open work of one campus.
type CampusLoad struct {
	Bathrooms     int `json:"bathrooms"`
	ActiveTickets int `json:"active_tickets"`
}

// Dashboard aggregates ticket and bathroom counts for the operations view.
type Dashboard struct {
	Bathrooms    int                         `json:"bathrooms"`
	Active       int                         `json:"active"`
	Maintenance  int                         `json:"maintenance"`
	WorkRequests int                         `json:"work_requests"`
	Critical     int                         `json:"critical"`
	Closed       int                         `json:"closed"`
	ByStatus     map[domain.TicketStatus]int `json:"by_status"`
	ByGender     map[domain.Gender]int       `json:"by_gender"`
	ByCampus     map[string]CampusLoad       `json:"by_campus"`
}

// Summarize counts the given bathrooms and tickets. Critical counts active
// high-priority tickets.
func Summarize(bathrooms []domain.Bathroom, tickets []domain.Ticket) Dashboard {
	d := Dashboard{
		Bathrooms: len(bathrooms),
		ByStatus: map[domain.TicketStatus]int{
			domain.TicketOpen:       0,
			domain.TicketInProgress: 0,
			domain.TicketClosed:     0,
		},
		ByGender: map[domain.Gender]int{
			domain.GenderMale:      0,
			domain.GenderFemale:    0,
			domain.GenderDisabled:  0,
			domain.GenderAllGender: 0,
		},
		ByCampus: make(map[string]CampusLoad),
	}
	for _, b := range bathrooms {
		d.ByGender[b.Gender]++
		load := d.ByCampus[b.CampusID]
		load.Bathrooms++
		d.ByCampus[b.CampusID] = load
	}
	for _, t := range tickets {
		d.ByStatus[t.Status]++
		if !t.Active() {
			d.Closed++
			continue
		}
		d.Active++
		if t.Type == domain.TicketWorkRequest {
			d.WorkRequests++
		} else {
			d.Maintenance++
		}
		if t.Priority == domain.PriorityHigh {
			d.Critical++
		}
		load := d.ByCampus[t.CampusID]
		load.ActiveTickets++
		d.ByCampus[t.CampusID] = load
	}
	return d
}
