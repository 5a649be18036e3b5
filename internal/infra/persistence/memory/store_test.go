package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"campuscore/pkg/domain"
)

func seedCampusAndBathroom(t *testing.T, store *Store) (Campus, Bathroom) {
	t.Helper()
	var campus Campus
	var bathroom Bathroom
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		campus, err = tx.CreateCampus(Campus{Name: "Main Hall"})
		if err != nil {
			return err
		}
		bathroom, err = tx.CreateBathroom(Bathroom{CampusID: campus.ID, Floor: "1", Code: "WC-1", Gender: domain.GenderMale})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return campus, bathroom
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindCampus("missing"); ok {
			t.Fatalf("expected missing campus lookup")
		}
		created, err := tx.CreateCampus(Campus{Name: "Library"})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if !created.CreatedAt.Equal(fixed) {
			t.Fatalf("expected injected clock, got %v", created.CreatedAt)
		}
		view := tx.Snapshot()
		if len(view.ListCampuses()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListCampuses()) != 1 {
		t.Fatalf("expected persisted campus")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListCampuses()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListCampuses()) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := NewStore(nil)
	campus, _ := seedCampusAndBathroom(t, store)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateCampus(campus.ID, func(c *Campus) error {
			c.Name = "Renamed"
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := store.GetCampus(campus.ID)
	if got.Name != "Main Hall" {
		t.Fatalf("expected rollback, got %q", got.Name)
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateCampus(Campus{Name: "Blocked"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(store.ListCampuses()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func TestStoreReferentialGuards(t *testing.T) {
	store := NewStore(nil)
	campus, bathroom := seedCampusAndBathroom(t, store)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateBathroom(Bathroom{CampusID: "ghost", Code: "X"})
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected missing campus error, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateInspection(Inspection{BathroomID: bathroom.ID})
		return err
	})
	if err != nil {
		t.Fatalf("create inspection: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteBathroom(bathroom.ID)
	})
	if err == nil {
		t.Fatalf("expected bathroom delete guard while inspections exist")
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteCampus(campus.ID)
	})
	if err == nil {
		t.Fatalf("expected campus delete guard while bathrooms exist")
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateCampus(campus.ID, func(c *Campus) error {
			c.ParentID = &c.ID
			return nil
		})
		return err
	})
	if !domain.IsCycle(err) {
		t.Fatalf("expected self-parent cycle error, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		missing := "nope"
		_, err := tx.CreateTicket(Ticket{CampusID: campus.ID, BathroomID: &missing, Title: "x"})
		return err
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected missing bathroom error, got %v", err)
	}
}

func TestStoreCRUDRoundTrip(t *testing.T) {
	store := NewStore(nil)
	campus, bathroom := seedCampusAndBathroom(t, store)
	ctx := context.Background()
	var ticket Ticket
	var inspection Inspection
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		inspection, err = tx.CreateInspection(Inspection{
			BathroomID: bathroom.ID,
			Records:    []domain.InspectionRecord{{ItemID: "sink", Status: domain.FindingWarning}},
		})
		if err != nil {
			return err
		}
		ticket, err = tx.CreateTicket(Ticket{CampusID: campus.ID, BathroomID: &bathroom.ID, Title: "Tap", Status: domain.TicketOpen})
		if err != nil {
			return err
		}
		_, err = tx.UpdateInspection(inspection.ID, func(in *Inspection) error {
			in.TicketCreated = true
			in.TicketID = &ticket.ID
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	inspections := store.ListInspections()
	if len(inspections) != 1 || !inspections[0].TicketCreated || *inspections[0].TicketID != ticket.ID {
		t.Fatalf("unexpected inspections %+v", inspections)
	}
	inspections[0].Records[0].Status = domain.FindingOK
	if store.ListInspections()[0].Records[0].Status != domain.FindingWarning {
		t.Fatalf("list must return clones")
	}
	tickets := store.ListTickets()
	if len(tickets) != 1 || tickets[0].Notes == nil {
		t.Fatalf("expected ticket with empty notes slice, got %+v", tickets)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.DeleteInspection(inspection.ID); err != nil {
			return err
		}
		if err := tx.DeleteTicket(ticket.ID); err != nil {
			return err
		}
		if err := tx.DeleteBathroom(bathroom.ID); err != nil {
			return err
		}
		return tx.DeleteCampus(campus.ID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.ListCampuses())+len(store.ListBathrooms())+len(store.ListTickets())+len(store.ListInspections()) != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestMigrateSnapshotRepairsDanglingReferences(t *testing.T) {
	empty := ""
	bathroomID := "b-gone"
	snapshot := Snapshot{
		Campuses: map[string]Campus{
			"c1": {Base: domain.Base{ID: "c1"}, Name: "Root", ParentID: &empty},
		},
		Bathrooms: map[string]Bathroom{
			"b1": {Base: domain.Base{ID: "b1"}, CampusID: "c1", Gender: "weird"},
			"b2": {Base: domain.Base{ID: "b2"}, CampusID: "missing"},
		},
		Inspections: map[string]Inspection{
			"i1": {Base: domain.Base{ID: "i1"}, BathroomID: "b1"},
			"i2": {Base: domain.Base{ID: "i2"}, BathroomID: "b2"},
		},
		Tickets: map[string]Ticket{
			"t1": {Base: domain.Base{ID: "t1"}, CampusID: "c1", BathroomID: &bathroomID},
			"t2": {Base: domain.Base{ID: "t2"}, CampusID: "c1"},
		},
	}
	store := NewStore(nil)
	store.ImportState(snapshot)

	if len(snapshot.Bathrooms) != 2 {
		t.Fatalf("import must not mutate the caller's snapshot")
	}
	if c, _ := store.GetCampus("c1"); c.ParentID != nil {
		t.Fatalf("expected empty parent normalised to nil")
	}
	if _, ok := store.GetBathroom("b2"); ok {
		t.Fatalf("expected dangling bathroom dropped")
	}
	if b, _ := store.GetBathroom("b1"); b.Gender != domain.GenderAllGender {
		t.Fatalf("expected unknown gender normalised, got %q", b.Gender)
	}
	if got := store.ListInspections(); len(got) != 1 || got[0].ID != "i1" || got[0].Records == nil {
		t.Fatalf("unexpected inspections %+v", got)
	}
	for _, ticket := range store.ListTickets() {
		if ticket.ID == "t1" && !ticket.AssetRemoved {
			t.Fatalf("expected orphaned ticket flagged")
		}
		if ticket.ID == "t2" && ticket.AssetRemoved {
			t.Fatalf("intact ticket must not be flagged")
		}
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestSnapshotBuckets(t *testing.T) {
	var snapshot Snapshot
	for _, name := range BucketNames {
		if snapshot.Bucket(name) == nil {
			t.Fatalf("expected bucket %s", name)
		}
	}
	if snapshot.Bucket("organisms") != nil {
		t.Fatalf("unknown bucket must be nil")
	}
	target, ok := snapshot.Bucket("campuses").(*map[string]Campus)
	if !ok {
		t.Fatalf("unexpected bucket type")
	}
	*target = map[string]Campus{"c1": {Base: domain.Base{ID: "c1"}}}
	if len(snapshot.Campuses) != 1 {
		t.Fatalf("bucket pointer must alias the snapshot field")
	}
}
