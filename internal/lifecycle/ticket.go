package lifecycle

import (
	"strings"
	"time"

	"campuscore/pkg/domain"
)

// DefaultNoteAuthor signs notes submitted without an author.
const DefaultNoteAuthor = "admin"

// MaintenanceTicket builds the open ticket raised for a failing inspection.
// Blank draft fields fall back to generic values and unknown priorities
// become medium.
func MaintenanceTicket(id string, draft domain.TicketDraft, in domain.Inspection, bathroom domain.Bathroom, campus domain.Campus, now time.Time) domain.Ticket {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = "Maintenance needed: " + bathroom.Code
	}
	description := strings.TrimSpace(draft.Description)
	if description == "" {
		description = "Inspection findings need attention. Check the full inspection report."
	}
	priority := draft.Priority
	if !priority.Valid() {
		priority = domain.PriorityMedium
	}
	inspectionID := in.ID
	bathroomID := bathroom.ID
	return domain.Ticket{
		Base:         domain.Base{ID: id, CreatedAt: now, UpdatedAt: now},
		Type:         domain.TicketMaintenance,
		InspectionID: &inspectionID,
		CampusID:     campus.ID,
		BathroomID:   &bathroomID,
		CampusName:   campus.Name,
		BathroomCode: bathroom.Code,
		Title:        title,
		Description:  description,
		Priority:     priority,
		Status:       domain.TicketOpen,
		Notes:        []domain.TicketNote{},
	}
}

// WorkRequestInput carries the fields of a manually raised ticket. The
// service resolves CampusName and BathroomCode from the ids.
type WorkRequestInput struct {
	CampusID      string          `json:"campus_id"`
	CampusName    string          `json:"-"`
	BathroomID    *string         `json:"bathroom_id,omitempty"`
	BathroomCode  string          `json:"-"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Priority      domain.Priority `json:"priority,omitempty"`
	EstimatedCost *float64        `json:"estimated_cost,omitempty"`
}

// NewWorkRequest validates the input and builds an open work-request ticket.
func NewWorkRequest(id string, in WorkRequestInput, now time.Time) (domain.Ticket, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Ticket{}, domain.ValidationError{Field: "title", Reason: "required"}
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return domain.Ticket{}, domain.ValidationError{Field: "description", Reason: "required"}
	}
	if strings.TrimSpace(in.CampusID) == "" || strings.TrimSpace(in.CampusName) == "" {
		return domain.Ticket{}, domain.ValidationError{Field: "campus", Reason: "required"}
	}
	priority := in.Priority
	switch {
	case priority == "":
		priority = domain.PriorityMedium
	case !priority.Valid():
		return domain.Ticket{}, domain.ValidationError{Field: "priority", Reason: "unknown priority " + string(priority)}
	}
	var cost *float64
	if in.EstimatedCost != nil {
		if *in.EstimatedCost < 0 {
			return domain.Ticket{}, domain.ValidationError{Field: "estimated_cost", Reason: "must not be negative"}
		}
		v := *in.EstimatedCost
		cost = &v
	}
	ticket := domain.Ticket{
		Base:          domain.Base{ID: id, CreatedAt: now, UpdatedAt: now},
		Type:          domain.TicketWorkRequest,
		CampusID:      in.CampusID,
		CampusName:    in.CampusName,
		Title:         title,
		Description:   description,
		Priority:      priority,
		EstimatedCost: cost,
		Status:        domain.TicketOpen,
		Notes:         []domain.TicketNote{},
	}
	if in.BathroomID != nil && *in.BathroomID != "" {
		bathroomID := *in.BathroomID
		ticket.BathroomID = &bathroomID
		ticket.BathroomCode = in.BathroomCode
	}
	return ticket, nil
}

// AppendNote adds a note to the end of the thread. Notes are accepted in any
// status.
func AppendNote(t domain.Ticket, noteID, text, author string, now time.Time) (domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return t, domain.ValidationError{Field: "text", Reason: "note text required"}
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultNoteAuthor
	}
	notes := make([]domain.TicketNote, 0, len(t.Notes)+1)
	notes = append(notes, t.Notes...)
	t.Notes = append(notes, domain.TicketNote{ID: noteID, Date: now, Text: text, Author: author})
	return t, nil
}

// SetStatus moves the ticket to any known status. There is no transition
// table; closed tickets may be reopened.
func SetStatus(t domain.Ticket, status domain.TicketStatus) (domain.Ticket, error) {
	if !status.Valid() {
		return t, domain.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	t.Status = status
	return t, nil
}

// Close marks the ticket closed, moving it from active work to the archive.
func Close(t domain.Ticket) domain.Ticket {
	t.Status = domain.TicketClosed
	return t
}

// ResolveLabels refreshes the display labels of tickets from the campuses and
// bathrooms that still exist. Tickets whose campus or bathroom is gone keep
// their last known labels and are flagged as orphaned.
func ResolveLabels(tickets []domain.Ticket, campuses []domain.Campus, bathrooms []domain.Bathroom) []domain.Ticket {
	campusByID := make(map[string]domain.Campus, len(campuses))
	for _, c := range campuses {
		campusByID[c.ID] = c
	}
	bathroomByID := make(map[string]domain.Bathroom, len(bathrooms))
	for _, b := range bathrooms {
		bathroomByID[b.ID] = b
	}
	out := make([]domain.Ticket, len(tickets))
	for i, t := range tickets {
		if c, ok := campusByID[t.CampusID]; ok {
			t.CampusName = c.Name
		} else {
			t.AssetRemoved = true
		}
		if t.BathroomID != nil {
			if b, ok := bathroomByID[*t.BathroomID]; ok {
				t.BathroomCode = b.Code
			} else {
				t.AssetRemoved = true
			}
		}
		out[i] = t
	}
	return out
}
