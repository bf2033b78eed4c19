package syncworker

import (
	"fmt"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/remote"
)

// State is the sync state of one entity id.
type State string

// Entity sync states. Every fetch moves UNKNOWN or a terminal state to
// FETCHING and then to exactly one terminal state.
const (
	StateUnknown  State = "UNKNOWN"
	StateFetching State = "FETCHING"
	StateSynced   State = "SYNCED"
	StateDeleted  State = "DELETED"
	StateError    State = "ERROR"
)

// CommandType names an inbound command.
type CommandType string

// Inbound commands.
const (
	CmdSyncEntity         CommandType = "SYNC_ENTITY"
	CmdSyncMultiple       CommandType = "SYNC_MULTIPLE"
	CmdSyncPendingChanges CommandType = "SYNC_PENDING_CHANGES"
	CmdSaveEntity         CommandType = "SAVE_ENTITY"
	CmdSaveTriple         CommandType = "SAVE_TRIPLE"
	CmdSaveRelation       CommandType = "SAVE_RELATION"
	CmdDeleteEntity       CommandType = "DELETE_ENTITY"
)

// Command is a request to the worker. Which payload field is set depends on
// Type. Deleted turns SAVE_TRIPLE and SAVE_RELATION into deletes.
type Command struct {
	Type     CommandType           `json:"type"`
	ID       string                `json:"id,omitempty"`
	IDs      []string              `json:"ids,omitempty"`
	Entity   *remote.EntityPayload `json:"entity,omitempty"`
	Triple   *graph.Triple         `json:"triple,omitempty"`
	Relation *graph.Relation       `json:"relation,omitempty"`
	Deleted  bool                  `json:"deleted,omitempty"`
}

// Validate checks that the payload required by Type is present.
func (c Command) Validate() error {
	var err error
	switch c.Type {
	case CmdSyncEntity, CmdDeleteEntity:
		if c.ID == "" {
			err = fmt.Errorf("%s requires id", c.Type)
		}
	case CmdSyncMultiple:
		if len(c.IDs) == 0 {
			err = fmt.Errorf("%s requires ids", c.Type)
		}
	case CmdSyncPendingChanges:
	case CmdSaveEntity:
		if c.Entity == nil || c.Entity.ID == "" {
			err = fmt.Errorf("%s requires entity with id", c.Type)
		}
	case CmdSaveTriple:
		if c.Triple == nil {
			err = fmt.Errorf("%s requires triple", c.Type)
		} else {
			err = c.Triple.Validate()
		}
	case CmdSaveRelation:
		if c.Relation == nil {
			err = fmt.Errorf("%s requires relation", c.Type)
		} else {
			err = c.Relation.Validate()
		}
	default:
		err = fmt.Errorf("unknown command type %q", c.Type)
	}
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidCommand, err), "syncworker", "Validate", "validate command")
	}
	return nil
}

// EventType names an outbound event.
type EventType string

// Outbound events.
const (
	EvtSyncSuccess          EventType = "SYNC_SUCCESS"
	EvtSyncError            EventType = "SYNC_ERROR"
	EvtMultipleSyncComplete EventType = "MULTIPLE_SYNC_COMPLETE"
	EvtSaveSuccess          EventType = "SAVE_SUCCESS"
	EvtSaveError            EventType = "SAVE_ERROR"
	EvtDeleteSuccess        EventType = "DELETE_SUCCESS"
	EvtDeleteError          EventType = "DELETE_ERROR"
)

// Payload kinds reported in SAVE events.
const (
	DataEntity   = "entity"
	DataTriple   = "triple"
	DataRelation = "relation"
)

// EntityData is the payload of SYNC_SUCCESS.
type EntityData struct {
	Entity    *remote.EntityPayload `json:"entity"`
	Triples   []graph.Triple        `json:"triples"`
	Relations []graph.Relation      `json:"relations"`
}

// EventError describes a failure for the id it is attached to.
type EventError struct {
	Message string `json:"message"`
	Class   string `json:"class"`
}

// NewEventError describes err for an event or reply.
func NewEventError(err error) *EventError {
	return &EventError{Message: err.Error(), Class: errors.Classify(err).String()}
}

// Event reports the outcome of one operation. For SAVE events ID is the
// composite key of the saved triple or relation, or the entity id.
// SYNC_SUCCESS with Deleted set has no Data.
type Event struct {
	Type     EventType   `json:"type"`
	ID       string      `json:"id,omitempty"`
	IDs      []string    `json:"ids,omitempty"`
	Data     *EntityData `json:"data,omitempty"`
	Deleted  bool        `json:"deleted,omitempty"`
	DataType string      `json:"dataType,omitempty"`
	Error    *EventError `json:"error,omitempty"`
}

// Terminal reports whether e ends the operation on its id.
func (e Event) Terminal() bool {
	return e.Type != EvtMultipleSyncComplete
}
