package lifecycle

import (
	"testing"
	"time"

	"campuscore/pkg/domain"
)

var (
	jan = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	mar = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func TestNewInspectionValidates(t *testing.T) {
	in, err := NewInspection("i1", "b1", jan, []domain.InspectionRecord{
		{ItemID: " sink ", Status: domain.FindingOK},
		{ItemID: "toilet", Status: domain.FindingCritical, Note: "cracked"},
	})
	if err != nil {
		t.Fatalf("NewInspection: %v", err)
	}
	if in.TicketCreated || in.TicketID != nil {
		t.Fatalf("new inspection must be unlinked")
	}
	if in.Records[0].ItemID != "sink" {
		t.Fatalf("expected trimmed item id, got %q", in.Records[0].ItemID)
	}

	cases := []struct {
		name       string
		bathroomID string
		date       time.Time
		records    []domain.InspectionRecord
	}{
		{"blank bathroom", " ", jan, nil},
		{"zero date", "b1", time.Time{}, nil},
		{"blank item", "b1", jan, []domain.InspectionRecord{{Status: domain.FindingOK}}},
		{"bad status", "b1", jan, []domain.InspectionRecord{{ItemID: "sink", Status: "broken"}}},
		{"duplicate", "b1", jan, []domain.InspectionRecord{{ItemID: "sink", Status: domain.FindingOK}, {ItemID: "sink", Status: domain.FindingWarning}}},
	}
	for _, tc := range cases {
		if _, err := NewInspection("x", tc.bathroomID, tc.date, tc.records); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestNeedsTicketAndFailingRecords(t *testing.T) {
	allOK := []domain.InspectionRecord{{ItemID: "a", Status: domain.FindingOK}, {ItemID: "b", Status: domain.FindingNotApplicable}}
	if NeedsTicket(allOK) || len(FailingRecords(allOK)) != 0 {
		t.Fatalf("all-OK inspection must not need a ticket")
	}
	mixed := append(allOK, domain.InspectionRecord{ItemID: "c", Status: domain.FindingWarning}, domain.InspectionRecord{ItemID: "d", Status: domain.FindingCritical})
	if !NeedsTicket(mixed) {
		t.Fatalf("expected ticket needed")
	}
	failing := FailingRecords(mixed)
	if len(failing) != 2 || failing[0].ItemID != "c" || failing[1].ItemID != "d" {
		t.Fatalf("unexpected failing records %+v", failing)
	}
}

func TestLinkTicketOnce(t *testing.T) {
	in := domain.Inspection{Base: domain.Base{ID: "i1"}}
	linked, err := LinkTicket(in, "t1")
	if err != nil {
		t.Fatalf("LinkTicket: %v", err)
	}
	if !linked.TicketCreated || *linked.TicketID != "t1" {
		t.Fatalf("expected linkage, got %+v", linked)
	}
	if _, err := LinkTicket(linked, "t2"); !domain.IsValidation(err) {
		t.Fatalf("expected second link rejected, got %v", err)
	}
	if _, err := LinkTicket(in, ""); !domain.IsValidation(err) {
		t.Fatalf("expected blank ticket id rejected, got %v", err)
	}
}

func TestDeriveAssetStatusUsesLatestInspection(t *testing.T) {
	inspections := []domain.Inspection{
		{Base: domain.Base{ID: "jan"}, BathroomID: "b1", Date: jan, TicketCreated: true, TicketID: strPtr("t-old")},
		{Base: domain.Base{ID: "mar"}, BathroomID: "b1", Date: mar},
		{Base: domain.Base{ID: "other"}, BathroomID: "b2", Date: mar.Add(time.Hour), TicketCreated: true, TicketID: strPtr("t2")},
	}
	status := DeriveAssetStatus("b1", inspections)
	if !status.Inspected || status.LastInspectionID != "mar" || !status.LastInspectionDate.Equal(mar) {
		t.Fatalf("expected March inspection, got %+v", status)
	}
	if status.HasOpenTicket {
		t.Fatalf("January ticket must be ignored")
	}

	inspections[1].TicketCreated = true
	inspections[1].TicketID = strPtr("t-mar")
	if !DeriveAssetStatus("b1", inspections).HasOpenTicket {
		t.Fatalf("expected March ticket flag")
	}

	never := DeriveAssetStatus("b9", inspections)
	if never.Inspected || never.LastInspectionDate != nil || never.HasOpenTicket {
		t.Fatalf("expected never inspected, got %+v", never)
	}
}

func TestMaintenanceTicketFromDraft(t *testing.T) {
	in := domain.Inspection{Base: domain.Base{ID: "i1"}}
	bathroom := domain.Bathroom{Base: domain.Base{ID: "b1"}, Code: "WC-1"}
	campus := domain.Campus{Base: domain.Base{ID: "c1"}, Name: "Main Hall"}
	ticket := MaintenanceTicket("t1", domain.TicketDraft{Title: " ", Priority: "urgent"}, in, bathroom, campus, mar)
	if ticket.Type != domain.TicketMaintenance || ticket.Status != domain.TicketOpen {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
	if *ticket.InspectionID != "i1" || *ticket.BathroomID != "b1" || ticket.CampusID != "c1" {
		t.Fatalf("expected foreign keys, got %+v", ticket)
	}
	if ticket.Title != "Maintenance needed: WC-1" || ticket.Priority != domain.PriorityMedium {
		t.Fatalf("expected fallback title and priority, got %q %q", ticket.Title, ticket.Priority)
	}
	if ticket.Description == "" {
		t.Fatalf("expected generic description for blank draft")
	}
	if ticket.CampusName != "Main Hall" || ticket.BathroomCode != "WC-1" || !ticket.CreatedAt.Equal(mar) {
		t.Fatalf("expected labels and timestamp, got %+v", ticket)
	}
}

func TestNewWorkRequest(t *testing.T) {
	cost := 120.5
	ticket, err := NewWorkRequest("w1", WorkRequestInput{
		CampusID:      "c1",
		CampusName:    "Library",
		BathroomID:    strPtr("b1"),
		BathroomCode:  "WC-3",
		Title:         " Replace mirror ",
		Description:   "Broken mirror",
		EstimatedCost: &cost,
	}, jan)
	if err != nil {
		t.Fatalf("NewWorkRequest: %v", err)
	}
	if ticket.Type != domain.TicketWorkRequest || ticket.InspectionID != nil || ticket.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
	if ticket.Title != "Replace mirror" || *ticket.EstimatedCost != 120.5 || ticket.BathroomCode != "WC-3" {
		t.Fatalf("unexpected fields %+v", ticket)
	}
	cost = 1
	if *ticket.EstimatedCost != 120.5 {
		t.Fatalf("estimated cost must be copied")
	}

	negative := -1.0
	invalid := []WorkRequestInput{
		{CampusID: "c1", CampusName: "L", Description: "d"},
		{CampusID: "c1", CampusName: "L", Title: "t"},
		{Title: "t", Description: "d"},
		{CampusID: "c1", CampusName: "L", Title: "t", Description: "d", Priority: "urgent"},
		{CampusID: "c1", CampusName: "L", Title: "t", Description: "d", EstimatedCost: &negative},
	}
	for i, in := range invalid {
		if _, err := NewWorkRequest("x", in, jan); !domain.IsValidation(err) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestAppendNoteAndStatus(t *testing.T) {
	ticket := domain.Ticket{Base: domain.Base{ID: "t1"}, Status: domain.TicketOpen, Notes: []domain.TicketNote{}}
	updated, err := AppendNote(ticket, "n1", "Called plumber", "", jan)
	if err != nil {
		t.Fatalf("AppendNote: %v", err)
	}
	if len(ticket.Notes) != 0 {
		t.Fatalf("input ticket must not change")
	}
	if len(updated.Notes) != 1 || updated.Notes[0].Author != DefaultNoteAuthor || !updated.Notes[0].Date.Equal(jan) {
		t.Fatalf("unexpected notes %+v", updated.Notes)
	}
	if _, err := AppendNote(updated, "n2", "  ", "ops", jan); !domain.IsValidation(err) {
		t.Fatalf("expected blank note rejected, got %v", err)
	}

	closed := Close(updated)
	if closed.Status != domain.TicketClosed {
		t.Fatalf("expected closed")
	}
	withNote, err := AppendNote(closed, "n2", "Post-closure check", "ops", mar)
	if err != nil || len(withNote.Notes) != 2 {
		t.Fatalf("notes must be accepted on closed tickets: %v", err)
	}
	reopened, err := SetStatus(closed, domain.TicketOpen)
	if err != nil || reopened.Status != domain.TicketOpen {
		t.Fatalf("expected any-to-any transition, got %v", err)
	}
	if _, err := SetStatus(closed, "done"); !domain.IsValidation(err) {
		t.Fatalf("expected unknown status rejected, got %v", err)
	}
}

func TestActiveWorkAndArchive(t *testing.T) {
	tickets := []domain.Ticket{
		{Base: domain.Base{ID: "old", CreatedAt: jan}, Status: domain.TicketOpen},
		{Base: domain.Base{ID: "new", CreatedAt: mar}, Status: domain.TicketInProgress},
		{Base: domain.Base{ID: "done", CreatedAt: mar}, Status: domain.TicketClosed},
	}
	active := ActiveWork(tickets)
	if len(active) != 2 || active[0].ID != "new" || active[1].ID != "old" {
		t.Fatalf("unexpected active work %+v", active)
	}

	tickets[1] = Close(tickets[1])
	active = ActiveWork(tickets)
	archive := Archive(tickets)
	if len(active) != 1 || active[0].ID != "old" {
		t.Fatalf("closed ticket must leave active work, got %+v", active)
	}
	if len(archive) != 2 || archive[0].ID != "done" || archive[1].ID != "new" {
		t.Fatalf("unexpected archive %+v", archive)
	}
}

func TestResolveLabels(t *testing.T) {
	tickets := []domain.Ticket{
		{Base: domain.Base{ID: "t1"}, CampusID: "c1", CampusName: "Old name", BathroomID: strPtr("b1"), BathroomCode: "OLD"},
		{Base: domain.Base{ID: "t2"}, CampusID: "c1", CampusName: "Old name", BathroomID: strPtr("gone"), BathroomCode: "WC-9"},
		{Base: domain.Base{ID: "t3"}, CampusID: "missing", CampusName: "Removed site"},
	}
	campuses := []domain.Campus{{Base: domain.Base{ID: "c1"}, Name: "Library"}}
	bathrooms := []domain.Bathroom{{Base: domain.Base{ID: "b1"}, CampusID: "c1", Code: "WC-1"}}
	got := ResolveLabels(tickets, campuses, bathrooms)
	if got[0].CampusName != "Library" || got[0].BathroomCode != "WC-1" || got[0].AssetRemoved {
		t.Fatalf("expected refreshed labels, got %+v", got[0])
	}
	if !got[1].AssetRemoved || got[1].BathroomCode != "WC-9" || got[1].CampusName != "Library" {
		t.Fatalf("expected orphaned bathroom ticket, got %+v", got[1])
	}
	if !got[2].AssetRemoved || got[2].CampusName != "Removed site" {
		t.Fatalf("expected orphaned campus ticket, got %+v", got[2])
	}
	if tickets[0].CampusName != "Old name" {
		t.Fatalf("input must not change")
	}
}

func TestSummarize(t *testing.T) {
	bathrooms := []domain.Bathroom{
		{Base: domain.Base{ID: "b1"}, CampusID: "c1", Gender: domain.GenderMale},
		{Base: domain.Base{ID: "b2"}, CampusID: "c1", Gender: domain.GenderFemale},
		{Base: domain.Base{ID: "b3"}, CampusID: "c2", Gender: domain.GenderDisabled},
	}
	tickets := []domain.Ticket{
		{CampusID: "c1", Type: domain.TicketMaintenance, Priority: domain.PriorityHigh, Status: domain.TicketOpen},
		{CampusID: "c1", Type: domain.TicketWorkRequest, Priority: domain.PriorityLow, Status: domain.TicketInProgress},
		{CampusID: "c2", Type: domain.TicketMaintenance, Priority: domain.PriorityHigh, Status: domain.TicketClosed},
	}
	d := Summarize(bathrooms, tickets)
	if d.Bathrooms != 3 || d.Active != 2 || d.Maintenance != 1 || d.WorkRequests != 1 || d.Critical != 1 || d.Closed != 1 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if d.ByStatus[domain.TicketOpen] != 1 || d.ByStatus[domain.TicketClosed] != 1 {
		t.Fatalf("unexpected status counts %+v", d.ByStatus)
	}
	if d.ByGender[domain.GenderAllGender] != 0 || d.ByGender[domain.GenderMale] != 1 {
		t.Fatalf("unexpected gender counts %+v", d.ByGender)
	}
	if d.ByCampus["c1"] != (CampusLoad{Bathrooms: 2, ActiveTickets: 2}) || d.ByCampus["c2"] != (CampusLoad{Bathrooms: 1}) {
		t.Fatalf("unexpected campus load %+v", d.ByCampus)
	}
}
