package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateCampus(Campus) (Campus, error)
	UpdateCampus(id string, mutator func(*Campus) error) (Campus, error)
	DeleteCampus(id string) error
	CreateBathroom(Bathroom) (Bathroom, error)
	UpdateBathroom(id string, mutator func(*Bathroom) error) (Bathroom, error)
	DeleteBathroom(id string) error
	CreateInspection(Inspection) (Inspection, error)
	UpdateInspection(id string, mutator func(*Inspection) error) (Inspection, error)
	DeleteInspection(id string) error
	CreateTicket(Ticket) (Ticket, error)
	UpdateTicket(id string, mutator func(*Ticket) error) (Ticket, error)
	DeleteTicket(id string) error
	FindCampus(id string) (Campus, bool)
	FindBathroom(id string) (Bathroom, bool)
	FindInspection(id string) (Inspection, bool)
	FindTicket(id string) (Ticket, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListCampuses() []Campus
	ListBathrooms() []Bathroom
	ListInspections() []Inspection
	ListTickets() []Ticket
	FindCampus(id string) (Campus, bool)
	FindBathroom(id string) (Bathroom, bool)
	FindInspection(id string) (Inspection, bool)
	FindTicket(id string) (Ticket, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetCampus(id string) (Campus, bool)
	ListCampuses() []Campus
	GetBathroom(id string) (Bathroom, bool)
	ListBathrooms() []Bathroom
	ListInspections() []Inspection
	ListTickets() []Ticket
}
