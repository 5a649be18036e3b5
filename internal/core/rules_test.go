package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"campuscore/internal/core"
	"campuscore/pkg/domain"

	memory "campuscore/internal/infra/persistence/memory"
)

func blockedBy(t *testing.T, err error, rule string) {
	t.Helper()
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !violation.Result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == rule {
			return
		}
	}
	t.Fatalf("expected violation from %s, got %+v", rule, violation.Result.Violations)
}

func TestCampusAcyclicRuleBlocksDirectCycles(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	ctx := context.Background()
	parent := "a"
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateCampus(domain.Campus{Base: domain.Base{ID: "a"}, Name: "A"}); err != nil {
			return err
		}
		_, err := tx.CreateCampus(domain.Campus{Base: domain.Base{ID: "b"}, Name: "B", ParentID: &parent})
		return err
	}); err != nil {
		t.Fatalf("seed campuses: %v", err)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		child := "b"
		_, err := tx.UpdateCampus("a", func(c *domain.Campus) error {
			c.ParentID = &child
			return nil
		})
		return err
	})
	blockedBy(t, err, "campus_acyclic")
	if c, _ := store.GetCampus("a"); c.ParentID != nil {
		t.Fatalf("blocked write must not be applied")
	}
}

func TestInspectionImmutableRule(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, core.WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()
	campus := mustCampus(t, svc, "Main", nil)
	bathroom := mustBathroom(t, svc, campus.ID, "WC-1")
	outcome, err := svc.SubmitInspection(ctx, bathroom.ID, fixedNow, failing("sink"))
	if err != nil || outcome.Ticket == nil {
		t.Fatalf("submit: %v", err)
	}
	id := outcome.Inspection.ID

	edits := map[string]func(*domain.Inspection){
		"date": func(in *domain.Inspection) { in.Date = in.Date.Add(time.Hour) },
		"records": func(in *domain.Inspection) {
			in.Records = []domain.InspectionRecord{{ItemID: "sink", Status: domain.FindingOK}}
		},
		"relink": func(in *domain.Inspection) {
			other := "another-ticket"
			in.TicketID = &other
		},
		"unlink": func(in *domain.Inspection) {
			in.TicketCreated = false
			in.TicketID = nil
		},
	}
	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				_, err := tx.UpdateInspection(id, func(in *domain.Inspection) error {
					edit(in)
					return nil
				})
				return err
			})
			blockedBy(t, err, "inspection_immutable")
		})
	}
}

func TestBathroomCodeRuleWarns(t *testing.T) {
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store)
	ctx := context.Background()
	campus := mustCampus(t, svc, "Main", nil)
	mustBathroom(t, svc, campus.ID, "WC-1")

	res, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateBathroom(domain.Bathroom{CampusID: campus.ID, Floor: "2", Code: "wc-1", Gender: domain.GenderMale})
		return err
	})
	if err != nil {
		t.Fatalf("duplicate code must not block: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != domain.SeverityWarn || res.Violations[0].Rule != "bathroom_code_unique" {
		t.Fatalf("expected one warning, got %+v", res.Violations)
	}
}
