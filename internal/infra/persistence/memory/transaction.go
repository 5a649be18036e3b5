package memory

import (
	"fmt"
	"time"

	"campuscore/pkg/domain"
)

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListCampuses() []Campus {
	return listCampuses(v.state)
}

func (v transactionView) ListBathrooms() []Bathroom {
	return listBathrooms(v.state)
}

func (v transactionView) ListInspections() []Inspection {
	return listInspections(v.state)
}

func (v transactionView) ListTickets() []Ticket {
	return listTickets(v.state)
}

func (v transactionView) FindCampus(id string) (Campus, bool) {
	c, ok := v.state.campuses[id]
	if !ok {
		return Campus{}, false
	}
	return cloneCampus(c), true
}

func (v transactionView) FindBathroom(id string) (Bathroom, bool) {
	b, ok := v.state.bathrooms[id]
	return b, ok
}

func (v transactionView) FindInspection(id string) (Inspection, bool) {
	in, ok := v.state.inspections[id]
	if !ok {
		return Inspection{}, false
	}
	return cloneInspection(in), true
}

func (v transactionView) FindTicket(id string) (Ticket, bool) {
	t, ok := v.state.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return cloneTicket(t), true
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindCampus exposes campus lookup within the transaction scope.
func (tx *transaction) FindCampus(id string) (Campus, bool) {
	return transactionView{state: &tx.state}.FindCampus(id)
}

// FindBathroom exposes bathroom lookup within the transaction scope.
func (tx *transaction) FindBathroom(id string) (Bathroom, bool) {
	return transactionView{state: &tx.state}.FindBathroom(id)
}

// FindInspection exposes inspection lookup within the transaction scope.
func (tx *transaction) FindInspection(id string) (Inspection, bool) {
	return transactionView{state: &tx.state}.FindInspection(id)
}

// FindTicket exposes ticket lookup within the transaction scope.
func (tx *transaction) FindTicket(id string) (Ticket, bool) {
	return transactionView{state: &tx.state}.FindTicket(id)
}

// CreateCampus stores a new campus. The parent, when set, must exist.
func (tx *transaction) CreateCampus(c Campus) (Campus, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.campuses[c.ID]; exists {
		return Campus{}, fmt.Errorf("campus %q already exists", c.ID)
	}
	if err := tx.checkParent(c); err != nil {
		return Campus{}, err
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.campuses[c.ID] = cloneCampus(c)
	tx.recordChange(Change{Entity: domain.EntityCampus, Action: domain.ActionCreate, After: cloneCampus(c)})
	return cloneCampus(c), nil
}

// UpdateCampus mutates an existing campus.
func (tx *transaction) UpdateCampus(id string, mutator func(*Campus) error) (Campus, error) {
	current, ok := tx.state.campuses[id]
	if !ok {
		return Campus{}, domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
	}
	before := cloneCampus(current)
	current = cloneCampus(current)
	if err := mutator(&current); err != nil {
		return Campus{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	if err := tx.checkParent(current); err != nil {
		return Campus{}, err
	}
	tx.state.campuses[id] = cloneCampus(current)
	tx.recordChange(Change{Entity: domain.EntityCampus, Action: domain.ActionUpdate, Before: before, After: cloneCampus(current)})
	return cloneCampus(current), nil
}

// DeleteCampus removes a campus. Sub-campuses and bathrooms must be removed first.
func (tx *transaction) DeleteCampus(id string) error {
	current, ok := tx.state.campuses[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCampus, ID: id}
	}
	for _, c := range tx.state.campuses {
		if c.ParentKey() == id {
			return fmt.Errorf("campus %q still referenced by sub-campus %q", id, c.ID)
		}
	}
	for _, b := range tx.state.bathrooms {
		if b.CampusID == id {
			return fmt.Errorf("campus %q still referenced by bathroom %q", id, b.ID)
		}
	}
	delete(tx.state.campuses, id)
	tx.recordChange(Change{Entity: domain.EntityCampus, Action: domain.ActionDelete, Before: cloneCampus(current)})
	return nil
}

func (tx *transaction) checkParent(c Campus) error {
	if c.IsRoot() {
		return nil
	}
	if *c.ParentID == c.ID {
		return domain.CycleError{CampusID: c.ID, TargetID: c.ID}
	}
	if _, ok := tx.state.campuses[*c.ParentID]; !ok {
		return domain.NotFoundError{Entity: domain.EntityCampus, ID: *c.ParentID}
	}
	return nil
}

// CreateBathroom stores a new bathroom under an existing campus.
func (tx *transaction) CreateBathroom(b Bathroom) (Bathroom, error) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	if _, exists := tx.state.bathrooms[b.ID]; exists {
		return Bathroom{}, fmt.Errorf("bathroom %q already exists", b.ID)
	}
	if _, ok := tx.state.campuses[b.CampusID]; !ok {
		return Bathroom{}, domain.NotFoundError{Entity: domain.EntityCampus, ID: b.CampusID}
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	tx.state.bathrooms[b.ID] = b
	tx.recordChange(Change{Entity: domain.EntityBathroom, Action: domain.ActionCreate, After: b})
	return b, nil
}

// UpdateBathroom mutates an existing bathroom.
func (tx *transaction) UpdateBathroom(id string, mutator func(*Bathroom) error) (Bathroom, error) {
	current, ok := tx.state.bathrooms[id]
	if !ok {
		return Bathroom{}, domain.NotFoundError{Entity: domain.EntityBathroom, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Bathroom{}, err
	}
	if _, ok := tx.state.campuses[current.CampusID]; !ok {
		return Bathroom{}, domain.NotFoundError{Entity: domain.EntityCampus, ID: current.CampusID}
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.bathrooms[id] = current
	tx.recordChange(Change{Entity: domain.EntityBathroom, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteBathroom removes a bathroom. Its inspections must be removed first.
func (tx *transaction) DeleteBathroom(id string) error {
	current, ok := tx.state.bathrooms[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityBathroom, ID: id}
	}
	for _, in := range tx.state.inspections {
		if in.BathroomID == id {
			return fmt.Errorf("bathroom %q still referenced by inspection %q", id, in.ID)
		}
	}
	delete(tx.state.bathrooms, id)
	tx.recordChange(Change{Entity: domain.EntityBathroom, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateInspection stores a new inspection for an existing bathroom.
func (tx *transaction) CreateInspection(in Inspection) (Inspection, error) {
	if in.ID == "" {
		in.ID = tx.store.newID()
	}
	if _, exists := tx.state.inspections[in.ID]; exists {
		return Inspection{}, fmt.Errorf("inspection %q already exists", in.ID)
	}
	if _, ok := tx.state.bathrooms[in.BathroomID]; !ok {
		return Inspection{}, domain.NotFoundError{Entity: domain.EntityBathroom, ID: in.BathroomID}
	}
	if in.Date.IsZero() {
		in.Date = tx.now
	}
	if in.Records == nil {
		in.Records = []domain.InspectionRecord{}
	}
	in.CreatedAt = tx.now
	in.UpdatedAt = tx.now
	tx.state.inspections[in.ID] = cloneInspection(in)
	tx.recordChange(Change{Entity: domain.EntityInspection, Action: domain.ActionCreate, After: cloneInspection(in)})
	return cloneInspection(in), nil
}

// UpdateInspection mutates an existing inspection.
func (tx *transaction) UpdateInspection(id string, mutator func(*Inspection) error) (Inspection, error) {
	current, ok := tx.state.inspections[id]
	if !ok {
		return Inspection{}, domain.NotFoundError{Entity: domain.EntityInspection, ID: id}
	}
	before := cloneInspection(current)
	current = cloneInspection(current)
	if err := mutator(&current); err != nil {
		return Inspection{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.inspections[id] = cloneInspection(current)
	tx.recordChange(Change{Entity: domain.EntityInspection, Action: domain.ActionUpdate, Before: before, After: cloneInspection(current)})
	return cloneInspection(current), nil
}

// DeleteInspection removes an inspection.
func (tx *transaction) DeleteInspection(id string) error {
	current, ok := tx.state.inspections[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityInspection, ID: id}
	}
	delete(tx.state.inspections, id)
	tx.recordChange(Change{Entity: domain.EntityInspection, Action: domain.ActionDelete, Before: cloneInspection(current)})
	return nil
}

// CreateTicket stores a new ticket.
func (tx *transaction) CreateTicket(t Ticket) (Ticket, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.tickets[t.ID]; exists {
		return Ticket{}, fmt.Errorf("ticket %q already exists", t.ID)
	}
	if _, ok := tx.state.campuses[t.CampusID]; !ok {
		return Ticket{}, domain.NotFoundError{Entity: domain.EntityCampus, ID: t.CampusID}
	}
	if t.BathroomID != nil {
		if _, ok := tx.state.bathrooms[*t.BathroomID]; !ok {
			return Ticket{}, domain.NotFoundError{Entity: domain.EntityBathroom, ID: *t.BathroomID}
		}
	}
	if t.Notes == nil {
		t.Notes = []domain.TicketNote{}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = tx.now
	}
	t.UpdatedAt = tx.now
	tx.state.tickets[t.ID] = cloneTicket(t)
	tx.recordChange(Change{Entity: domain.EntityTicket, Action: domain.ActionCreate, After: cloneTicket(t)})
	return cloneTicket(t), nil
}

// UpdateTicket mutates an existing ticket.
func (tx *transaction) UpdateTicket(id string, mutator func(*Ticket) error) (Ticket, error) {
	current, ok := tx.state.tickets[id]
	if !ok {
		return Ticket{}, domain.NotFoundError{Entity: domain.EntityTicket, ID: id}
	}
	before := cloneTicket(current)
	current = cloneTicket(current)
	if err := mutator(&current); err != nil {
		return Ticket{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.tickets[id] = cloneTicket(current)
	tx.recordChange(Change{Entity: domain.EntityTicket, Action: domain.ActionUpdate, Before: before, After: cloneTicket(current)})
	return cloneTicket(current), nil
}

// DeleteTicket removes a ticket. Inspections linked to it keep their flag.
func (tx *transaction) DeleteTicket(id string) error {
	current, ok := tx.state.tickets[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTicket, ID: id}
	}
	delete(tx.state.tickets, id)
	tx.recordChange(Change{Entity: domain.EntityTicket, Action: domain.ActionDelete, Before: cloneTicket(current)})
	return nil
}
