// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by campuscore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCampus identifies a campus (site) node in the facility hierarchy.
	EntityCampus EntityType = "campus"
	// EntityBathroom identifies an inspectable restroom asset.
	EntityBathroom EntityType = "bathroom"
	// EntityInspection identifies a dated checklist submission.
	EntityInspection EntityType = "inspection"
	// EntityTicket identifies a maintenance or work-request ticket.
	EntityTicket EntityType = "ticket"
)

// Gender classifies the intended users of a bathroom.
type Gender string

// Supported bathroom genders.
const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderDisabled  Gender = "disabled"
	GenderAllGender Gender = "all_gender"
)

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderDisabled, GenderAllGender:
		return true
	}
	return false
}

// FindingStatus is the outcome recorded for a single checklist item.
type FindingStatus string

// Checklist finding statuses.
const (
	FindingOK            FindingStatus = "ok"
	FindingWarning       FindingStatus = "warning"
	FindingCritical      FindingStatus = "critical"
	FindingNotApplicable FindingStatus = "not_applicable"
)

// Valid reports whether s is a known finding status.
func (s FindingStatus) Valid() bool {
	switch s {
	case FindingOK, FindingWarning, FindingCritical, FindingNotApplicable:
		return true
	}
	return false
}

// Failing reports whether the finding requires maintenance follow-up.
func (s FindingStatus) Failing() bool {
	return s == FindingWarning || s == FindingCritical
}

// TicketType distinguishes inspection-derived maintenance from manual requests.
type TicketType string

// Ticket types.
const (
	TicketMaintenance TicketType = "maintenance"
	TicketWorkRequest TicketType = "work_request"
)

// TicketStatus tracks a ticket through its lifecycle. Any status may be set
// directly; closed tickets are archived by convention only.
type TicketStatus string

// Ticket statuses.
const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketClosed:
		return true
	}
	return false
}

// Priority ranks ticket urgency.
type Priority string

// Ticket priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Base contains common fields for all entities.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Campus is a site node in the facility forest.
type Campus struct {
	Base
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	// OrderIndex positions the campus among its siblings. Keys are sparse
	// and only their relative order is meaningful.
	OrderIndex int64 `json:"order_index"`
}

// IsRoot reports whether the campus has no parent.
func (c Campus) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// ParentKey returns the parent id or the empty string for roots.
func (c Campus) ParentKey() string {
	if c.IsRoot() {
		return ""
	}
	return *c.ParentID
}

// Bathroom is an inspectable restroom owned by exactly one campus.
type Bathroom struct {
	Base
	CampusID string `json:"campus_id"`
	Floor    string `json:"floor"`
	Code     string `json:"code"`
	Gender   Gender `json:"gender"`
	Notes    string `json:"notes,omitempty"`
}

// InspectionRecord captures the finding for one checklist item.
type InspectionRecord struct {
	ItemID string        `json:"item_id"`
	Status FindingStatus `json:"status"`
	Note   string        `json:"note,omitempty"`
}

// Inspection is a dated checklist submission for a bathroom. Only the ticket
// linkage fields change after creation.
type Inspection struct {
	Base
	BathroomID    string             `json:"bathroom_id"`
	Date          time.Time          `json:"date"`
	Records       []InspectionRecord `json:"records"`
	TicketCreated bool               `json:"ticket_created"`
	TicketID      *string            `json:"ticket_id,omitempty"`
}

// TicketNote is a single entry in a ticket's note thread.
type TicketNote struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Text   string    `json:"text"`
	Author string    `json:"author"`
}

// Ticket is a work order raised from an inspection or by hand.
type Ticket struct {
	Base
	Type         TicketType `json:"type"`
	InspectionID *string    `json:"inspection_id,omitempty"`
	CampusID     string     `json:"campus_id"`
	BathroomID   *string    `json:"bathroom_id,omitempty"`
	// CampusName and BathroomCode hold the last known display labels. They
	// are refreshed from the referenced entities whenever those still exist.
	CampusName   string `json:"campus_name"`
	BathroomCode string `json:"bathroom_code,omitempty"`
	// AssetRemoved marks tickets whose campus or bathroom has been deleted.
	AssetRemoved  bool         `json:"asset_removed,omitempty"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Priority      Priority     `json:"priority"`
	EstimatedCost *float64     `json:"estimated_cost,omitempty"`
	Status        TicketStatus `json:"status"`
	Notes         []TicketNote `json:"notes"`
}

// TicketDraft is the generated or fallback content of a maintenance ticket.
type TicketDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// Active reports whether the ticket still counts as open work.
func (t Ticket) Active() bool {
	return t.Status != TicketClosed
}

// AssetStatus is the derived inspection state of a bathroom.
type AssetStatus struct {
	BathroomID         string     `json:"bathroom_id"`
	Inspected          bool       `json:"inspected"`
	LastInspectionID   string     `json:"last_inspection_id,omitempty"`
	LastInspectionDate *time.Time `json:"last_inspection_date,omitempty"`
	HasOpenTicket      bool       `json:"has_open_ticket"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule violation severity.
type Severity string

const (
	// SeverityBlock blocks the transaction.
	SeverityBlock Severity = "block"
	// SeverityWarn is a non-blocking warning.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
