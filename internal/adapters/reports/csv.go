// Package reports renders CSV exports of active work and restroom census
// data and stores them as artifacts through an asynchronous worker.
package reports

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"campuscore/internal/hierarchy"
	"campuscore/pkg/domain"
)

const (
	// ContentTypeCSV is attached to every rendered artifact.
	ContentTypeCSV = "text/csv; charset=utf-8"

	dateLayout = "2006-01-02"
	noValue    = "-"
)

var (
	activeWorkHeader = []string{"Type", "Priority", "Opened", "Site", "Room", "Title", "Status", "ID"}
	censusHeader     = []string{"Site", "Parent site", "Floor", "Room code", "Gender", "Notes"}
	whitespace       = regexp.MustCompile(`\s+`)
)

// WriteActiveWork writes the tickets that are not closed, newest first.
// Tickets are expected to carry refreshed display labels.
func WriteActiveWork(w io.Writer, tickets []domain.Ticket) error {
	cw := newQuotedWriter(w)
	cw.write(activeWorkHeader)
	for _, t := range activeOnly(tickets) {
		room := t.BathroomCode
		if room == "" {
			room = noValue
		}
		cw.write([]string{
			ticketTypeLabel(t.Type),
			string(t.Priority),
			t.CreatedAt.UTC().Format(dateLayout),
			t.CampusName,
			room,
			t.Title,
			string(t.Status),
			t.ID,
		})
	}
	return cw.flush()
}

func activeOnly(tickets []domain.Ticket) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.Active() {
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

func ticketTypeLabel(t domain.TicketType) string {
	switch t {
	case domain.TicketWorkRequest:
		return "Work request"
	case domain.TicketMaintenance:
		return "Maintenance"
	default:
		return string(t)
	}
}

// WriteCensus writes the restrooms of the campus scopeID and all of its
// descendants, or of every campus when scopeID is empty, ordered by floor
// then code.
func WriteCensus(w io.Writer, forest *hierarchy.Forest, bathrooms []domain.Bathroom, scopeID string) error {
	inScope := func(string) bool { return true }
	if scopeID != "" {
		if _, ok := forest.Get(scopeID); !ok {
			return domain.NotFoundError{Entity: domain.EntityCampus, ID: scopeID}
		}
		ids := map[string]struct{}{scopeID: {}}
		for _, id := range forest.Descendants(scopeID) {
			ids[id] = struct{}{}
		}
		inScope = func(id string) bool {
			_, ok := ids[id]
			return ok
		}
	}

	selected := make([]domain.Bathroom, 0, len(bathrooms))
	for _, b := range bathrooms {
		if inScope(b.CampusID) {
			selected = append(selected, b)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Floor != selected[j].Floor {
			return selected[i].Floor < selected[j].Floor
		}
		return selected[i].Code < selected[j].Code
	})

	cw := newQuotedWriter(w)
	cw.write(censusHeader)
	for _, b := range selected {
		site, parent := "", noValue
		if campus, ok := forest.Get(b.CampusID); ok {
			site = campus.Name
			if campus.ParentID != nil {
				if p, ok := forest.Get(*campus.ParentID); ok {
					parent = p.Name
				}
			}
		}
		cw.write([]string{site, parent, b.Floor, b.Code, string(b.Gender), b.Notes})
	}
	return cw.flush()
}

// ActiveWorkFilename names the active work export for the day of now.
func ActiveWorkFilename(now time.Time) string {
	return fmt.Sprintf("active_work_%s.csv", now.UTC().Format(dateLayout))
}

// CensusFilename names the census export of site for the day of now.
// Whitespace runs in the site name become underscores.
func CensusFilename(site string, now time.Time) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(site), "_")
	if name == "" {
		name = "all"
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return fmt.Sprintf("census_%s_%s.csv", name, now.UTC().Format(dateLayout))
}

// quotedWriter emits RFC 4180 records with every field quoted, which
// encoding/csv only does for fields that need it.
type quotedWriter struct {
	w   *bufio.Writer
	err error
}

func newQuotedWriter(w io.Writer) *quotedWriter {
	return &quotedWriter{w: bufio.NewWriter(w)}
}

func (q *quotedWriter) write(fields []string) {
	if q.err != nil {
		return
	}
	for i, field := range fields {
		if i > 0 {
			if q.err = q.w.WriteByte(','); q.err != nil {
				return
			}
		}
		if _, q.err = q.w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); q.err != nil {
			return
		}
	}
	q.err = q.w.WriteByte('\n')
}

func (q *quotedWriter) flush() error {
	if q.err != nil {
		return q.err
	}
	return q.w.Flush()
}
