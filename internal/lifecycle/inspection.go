// Package lifecycle holds the pure rules of the inspection and ticket work
// flow: building inspections, deriving maintenance tickets, note threads,
// status changes and the read-side views over tickets and inspections.
//
// Nothing here touches a store. Every function takes the current values and
// returns new ones for the caller to persist.
package lifecycle

import (
	"strings"
	"time"

	"campuscore/pkg/domain"
)

// NewInspection validates the findings and builds an inspection that is not
// yet linked to a ticket.
func NewInspection(id, bathroomID string, date time.Time, records []domain.InspectionRecord) (domain.Inspection, error) {
	if strings.TrimSpace(bathroomID) == "" {
		return domain.Inspection{}, domain.ValidationError{Field: "bathroom_id", Reason: "required"}
	}
	if date.IsZero() {
		return domain.Inspection{}, domain.ValidationError{Field: "date", Reason: "required"}
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.InspectionRecord, 0, len(records))
	for _, r := range records {
		r.ItemID = strings.TrimSpace(r.ItemID)
		if r.ItemID == "" {
			return domain.Inspection{}, domain.ValidationError{Field: "records", Reason: "item id required"}
		}
		if !r.Status.Valid() {
			return domain.Inspection{}, domain.ValidationError{Field: "records", Reason: "unknown status " + string(r.Status) + " for " + r.ItemID}
		}
		if _, dup := seen[r.ItemID]; dup {
			return domain.Inspection{}, domain.ValidationError{Field: "records", Reason: "duplicate item " + r.ItemID}
		}
		seen[r.ItemID] = struct{}{}
		out = append(out, r)
	}
	return domain.Inspection{
		Base:       domain.Base{ID: id},
		BathroomID: bathroomID,
		Date:       date.UTC(),
		Records:    out,
	}, nil
}

// NeedsTicket reports whether any finding is a warning or critical.
func NeedsTicket(records []domain.InspectionRecord) bool {
	for _, r := range records {
		if r.Status.Failing() {
			return true
		}
	}
	return false
}

// FailingRecords returns the warning and critical findings in form order.
func FailingRecords(records []domain.InspectionRecord) []domain.InspectionRecord {
	var out []domain.InspectionRecord
	for _, r := range records {
		if r.Status.Failing() {
			out = append(out, r)
		}
	}
	return out
}

// LinkTicket records the ticket raised for the inspection. The link is set
// at most once.
func LinkTicket(in domain.Inspection, ticketID string) (domain.Inspection, error) {
	if strings.TrimSpace(ticketID) == "" {
		return in, domain.ValidationError{Field: "ticket_id", Reason: "required"}
	}
	if in.TicketCreated || in.TicketID != nil {
		return in, domain.ValidationError{Field: "ticket_id", Reason: "inspection " + in.ID + " is already linked"}
	}
	in.TicketCreated = true
	in.TicketID = &ticketID
	return in, nil
}

// DeriveAssetStatus reports the latest inspection of a bathroom and whether
// that inspection raised a ticket. Inspections sharing the latest date are
// resolved in input order. Older tickets are not considered.
func DeriveAssetStatus(bathroomID string, inspections []domain.Inspection) domain.AssetStatus {
	status := domain.AssetStatus{BathroomID: bathroomID}
	var latest *domain.Inspection
	for i := range inspections {
		in := &inspections[i]
		if in.BathroomID != bathroomID {
			continue
		}
		if latest == nil || in.Date.After(latest.Date) {
			latest = in
		}
	}
	if latest == nil {
		return status
	}
	date := latest.Date
	status.Inspected = true
	status.LastInspectionID = latest.ID
	status.LastInspectionDate = &date
	status.HasOpenTicket = latest.TicketCreated && latest.TicketID != nil
	return status
}
