// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/gateboard/gateboard/internal/domain/model"
)

// Sentinel errors returned by store implementations.
var (
	// ErrEventNotFound indicates the requested event does not exist where the
	// caller asserted it must.
	ErrEventNotFound = errors.New("event not found")
)

// EventStore defines the driven port for gate-event reads. Get methods return
// (nil, nil) when the event simply does not exist; callers that require the
// event use MustGetByUUID and receive ErrEventNotFound.
type EventStore interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetByUUID(ctx context.Context, uuid string) (*model.Event, error)
	// MustGetByUUID returns ErrEventNotFound instead of (nil, nil).
	MustGetByUUID(ctx context.Context, uuid string) (*model.Event, error)
	// ListByWindow returns events for the project/branch whose trigger
	// timestamp falls inside [start, end] (linked timestamps).
	ListByWindow(ctx context.Context, project, branch, start, end string) ([]model.Event, error)
}
