package gateway

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/syncworker"
)

//go:embed command.schema.json
var commandSchemaJSON []byte

var commandSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(commandSchemaJSON))
})

// CommandSchema returns the JSON Schema inbound commands are checked against.
func CommandSchema() []byte { return commandSchemaJSON }

// DecodeCommand validates data against the command schema and decodes it.
// Every rejection is an invalid error wrapping errors.ErrInvalidCommand.
func DecodeCommand(data []byte) (syncworker.Command, error) {
	schema, err := commandSchema()
	if err != nil {
		return syncworker.Command{}, errors.WrapFatal(err, "gateway", "DecodeCommand", "compile command schema")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return syncworker.Command{}, rejected(err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return syncworker.Command{}, rejected(strings.Join(msgs, "; "))
	}

	var cmd syncworker.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return syncworker.Command{}, rejected(err.Error())
	}
	if err := cmd.Validate(); err != nil {
		return syncworker.Command{}, err
	}
	return cmd, nil
}

func rejected(reason string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidCommand, reason), "gateway", "DecodeCommand", "validate command")
}

// EncodeEvent renders e as JSON.
func EncodeEvent(e syncworker.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "gateway", "EncodeEvent", "marshal event")
	}
	return data, nil
}

// Reply answers one inbound command.
type Reply struct {
	OK    bool                   `json:"ok"`
	Type  syncworker.CommandType `json:"type,omitempty"`
	Error *syncworker.EventError `json:"error,omitempty"`
}

// Handle decodes data and submits the command. The returned reply is sent
// back to the caller whether or not the command was accepted.
func Handle(s Submitter, data []byte) (Reply, error) {
	cmd, err := DecodeCommand(data)
	if err == nil {
		err = s.Submit(cmd)
	}
	if err != nil {
		return Reply{Type: cmd.Type, Error: syncworker.NewEventError(err)}, err
	}
	return Reply{OK: true, Type: cmd.Type}, nil
}

// EventSubject returns the subject an event of type t is published on,
// such as "graphsync.evt.sync_success" for prefix "graphsync.evt".
func EventSubject(prefix string, t syncworker.EventType) string {
	return prefix + "." + strings.ToLower(string(t))
}
