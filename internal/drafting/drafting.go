// Package drafting produces the title, description and priority of the
// maintenance ticket raised for a failing inspection.
//
// A Generator is an optional capability. Draft always returns usable
// content: when the generator is absent or fails, the deterministic
// Fallback is used instead.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campuscore/pkg/domain"
)

// Request describes the inspection a draft is generated for.
type Request struct {
	CampusName   string
	BathroomCode string
	Date         time.Time
	Failing      []domain.InspectionRecord
}

// Generator drafts ticket content from failing findings.
type Generator interface {
	Generate(ctx context.Context, req Request) (domain.TicketDraft, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (domain.TicketDraft, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (domain.TicketDraft, error) {
	return f(ctx, req)
}

// Fallback is the draft used whenever generation is unavailable.
func Fallback(bathroomCode string, failing int) domain.TicketDraft {
	noun, verb := "findings", "need"
	if failing == 1 {
		noun, verb = "finding", "needs"
	}
	return domain.TicketDraft{
		Title:       "Maintenance needed: " + bathroomCode,
		Description: fmt.Sprintf("%d inspection %s %s attention. Check the full inspection report.", failing, noun, verb),
		Priority:    domain.PriorityMedium,
	}
}

// Draft asks gen for ticket content and falls back to Fallback when gen is
// nil, fails or returns an empty title. A blank description is replaced by
// the fallback one. The generator is only called when
// there are failing findings. Failures are logged as GenerationError and
// never returned.
func Draft(ctx context.Context, gen Generator, req Request, logger *slog.Logger) domain.TicketDraft {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fallback := Fallback(req.BathroomCode, len(req.Failing))
	if len(req.Failing) == 0 {
		return fallback
	}
	if gen == nil {
		logger.InfoContext(ctx, "draft generator unavailable, using fallback", "bathroom_code", req.BathroomCode)
		return fallback
	}
	draft, err := gen.Generate(ctx, req)
	if err == nil && strings.TrimSpace(draft.Title) == "" {
		err = errors.New("empty title")
	}
	if err != nil {
		genErr := domain.GenerationError{Err: err}
		logger.WarnContext(ctx, "draft generation failed, using fallback", "bathroom_code", req.BathroomCode, "error", genErr)
		return fallback
	}
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	if draft.Description == "" {
		draft.Description = fallback.Description
	}
	draft.Priority = NormalizePriority(string(draft.Priority))
	return draft
}

// NormalizePriority maps generator output onto a known priority. English and
// Italian labels are accepted in any case; anything else is medium.
func NormalizePriority(raw string) domain.Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "bassa":
		return domain.PriorityLow
	case "high", "alta":
		return domain.PriorityHigh
	default:
		return domain.PriorityMedium
	}
}

// Prompt renders the instruction sent to text generators.
func Prompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyse the following problems found while inspecting a university restroom.\n")
	fmt.Fprintf(&b, "Site: %s\n", req.CampusName)
	fmt.Fprintf(&b, "Restroom: %s\n", req.BathroomCode)
	if !req.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", req.Date.Format(time.DateOnly))
	}
	b.WriteString("\nProblems found:\n")
	for _, r := range req.Failing {
		fmt.Fprintf(&b, "- %s: status %s.", domain.ChecklistLabel(r.ItemID), r.Status)
		if note := strings.TrimSpace(r.Note); note != "" {
			fmt.Fprintf(&b, " Notes: %s", note)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nTask:\nWrite a concise ticket title and a professional technical description for the maintenance team. ")
	b.WriteString("Assign a priority (low, medium, high) based on severity: critical findings are high, structural or plumbing problems are high or medium.\n")
	return b.String()
}
