// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuscore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Campus aliases domain.Campus for in-memory persistence operations.
	Campus = domain.Campus
	// Bathroom aliases domain.Bathroom.
	Bathroom = domain.Bathroom
	// Inspection aliases domain.Inspection.
	Inspection = domain.Inspection
	// Ticket aliases domain.Ticket.
	Ticket = domain.Ticket
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	campuses    map[string]Campus
	bathrooms   map[string]Bathroom
	inspections map[string]Inspection
	tickets     map[string]Ticket
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Campuses    map[string]Campus     `json:"campuses"`
	Bathrooms   map[string]Bathroom   `json:"bathrooms"`
	Inspections map[string]Inspection `json:"inspections"`
	Tickets     map[string]Ticket     `json:"tickets"`
}

func newMemoryState() memoryState {
	return memoryState{
		campuses:    make(map[string]Campus),
		bathrooms:   make(map[string]Bathroom),
		inspections: make(map[string]Inspection),
		tickets:     make(map[string]Ticket),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Campuses:    make(map[string]Campus, len(state.campuses)),
		Bathrooms:   make(map[string]Bathroom, len(state.bathrooms)),
		Inspections: make(map[string]Inspection, len(state.inspections)),
		Tickets:     make(map[string]Ticket, len(state.tickets)),
	}
	for k, v := range state.campuses {
		s.Campuses[k] = cloneCampus(v)
	}
	for k, v := range state.bathrooms {
		s.Bathrooms[k] = v
	}
	for k, v := range state.inspections {
		s.Inspections[k] = cloneInspection(v)
	}
	for k, v := range state.tickets {
		s.Tickets[k] = cloneTicket(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Campuses {
		state.campuses[k] = cloneCampus(v)
	}
	for k, v := range s.Bathrooms {
		state.bathrooms[k] = v
	}
	for k, v := range s.Inspections {
		state.inspections[k] = cloneInspection(v)
	}
	for k, v := range s.Tickets {
		state.tickets[k] = cloneTicket(v)
	}
	return state
}

// migrateSnapshot normalises snapshots written by older builds or edited by
// hand: nil collections become empty, bathrooms without a campus and
// inspections without a bathroom are dropped, and tickets that lost their
// campus or bathroom are flagged as orphaned.
func migrateSnapshot(in Snapshot) Snapshot {
	// Work on a deep copy so callers keep their snapshot untouched.
	snapshot := snapshotFromMemoryState(memoryStateFromSnapshot(in))
	for id, c := range snapshot.Campuses {
		if c.ParentID != nil && *c.ParentID == "" {
			c.ParentID = nil
			snapshot.Campuses[id] = c
		}
	}
	for id, b := range snapshot.Bathrooms {
		if _, ok := snapshot.Campuses[b.CampusID]; !ok {
			delete(snapshot.Bathrooms, id)
			continue
		}
		if !b.Gender.Valid() {
			b.Gender = domain.GenderAllGender
			snapshot.Bathrooms[id] = b
		}
	}
	for id, in := range snapshot.Inspections {
		if _, ok := snapshot.Bathrooms[in.BathroomID]; !ok {
			delete(snapshot.Inspections, id)
			continue
		}
		if in.Records == nil {
			in.Records = []domain.InspectionRecord{}
			snapshot.Inspections[id] = in
		}
	}
	for id, t := range snapshot.Tickets {
		changed := false
		if t.Notes == nil {
			t.Notes = []domain.TicketNote{}
			changed = true
		}
		if _, ok := snapshot.Campuses[t.CampusID]; !ok && !t.AssetRemoved {
			t.AssetRemoved = true
			changed = true
		}
		if t.BathroomID != nil && !t.AssetRemoved {
			if _, ok := snapshot.Bathrooms[*t.BathroomID]; !ok {
				t.AssetRemoved = true
				changed = true
			}
		}
		if changed {
			snapshot.Tickets[id] = t
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneCampus(c Campus) Campus {
	cp := c
	if c.ParentID != nil {
		parent := *c.ParentID
		cp.ParentID = &parent
	}
	return cp
}

func cloneInspection(in Inspection) Inspection {
	cp := in
	cp.Records = append([]domain.InspectionRecord(nil), in.Records...)
	if in.TicketID != nil {
		id := *in.TicketID
		cp.TicketID = &id
	}
	return cp
}

func cloneTicket(t Ticket) Ticket {
	cp := t
	cp.Notes = append([]domain.TicketNote(nil), t.Notes...)
	if t.InspectionID != nil {
		id := *t.InspectionID
		cp.InspectionID = &id
	}
	if t.BathroomID != nil {
		id := *t.BathroomID
		cp.BathroomID = &id
	}
	if t.EstimatedCost != nil {
		cost := *t.EstimatedCost
		cp.EstimatedCost = &cost
	}
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used to stamp CreatedAt/UpdatedAt.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn and every registered rule succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

// GetCampus retrieves a campus by ID.
func (s *Store) GetCampus(id string) (Campus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.campuses[id]
	if !ok {
		return Campus{}, false
	}
	return cloneCampus(c), true
}

// ListCampuses returns all campuses ordered by id.
func (s *Store) ListCampuses() []Campus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCampuses(&s.state)
}

// GetBathroom retrieves a bathroom by ID.
func (s *Store) GetBathroom(id string) (Bathroom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.bathrooms[id]
	return b, ok
}

// ListBathrooms returns all bathrooms ordered by id.
func (s *Store) ListBathrooms() []Bathroom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBathrooms(&s.state)
}

// ListInspections returns all inspections ordered by id.
func (s *Store) ListInspections() []Inspection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listInspections(&s.state)
}

// ListTickets returns all tickets ordered by id.
func (s *Store) ListTickets() []Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTickets(&s.state)
}

func listCampuses(state *memoryState) []Campus {
	out := make([]Campus, 0, len(state.campuses))
	for _, c := range state.campuses {
		out = append(out, cloneCampus(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listBathrooms(state *memoryState) []Bathroom {
	out := make([]Bathroom, 0, len(state.bathrooms))
	for _, b := range state.bathrooms {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listInspections(state *memoryState) []Inspection {
	out := make([]Inspection, 0, len(state.inspections))
	for _, in := range state.inspections {
		out = append(out, cloneInspection(in))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listTickets(state *memoryState) []Ticket {
	out := make([]Ticket, 0, len(state.tickets))
	for _, t := range state.tickets {
		out = append(out, cloneTicket(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BucketNames lists the snapshot sections persisted by the durable stores,
// one row per bucket.
var BucketNames = []string{"campuses", "bathrooms", "inspections", "tickets"}

// Bucket returns a pointer to the snapshot section stored under name, or nil
// for unknown buckets. The pointer is suitable for json.Marshal and
// json.Unmarshal.
func (s *Snapshot) Bucket(name string) any {
	switch name {
	case "campuses":
		return &s.Campuses
	case "bathrooms":
		return &s.Bathrooms
	case "inspections":
		return &s.Inspections
	case "tickets":
		return &s.Tickets
	default:
		return nil
	}
}
