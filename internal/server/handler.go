// Package server provides the WebSocket command handlers for the ducker control channel.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-ducker/internal/audio"
	"github.com/oszuidwest/zwfm-ducker/internal/ducking"
	"github.com/oszuidwest/zwfm-ducker/internal/types"
)

// Result codes reported with failed commands.
const (
	CodeInvalidJSON    = "invalid_json"
	CodeInvalidRequest = "invalid_request"
	CodeSessionGone    = "session_gone"
	CodeSessionExists  = "session_exists"
	CodeEngineRunning  = "engine_running"
	CodeStopTimeout    = "stop_timeout"
	CodeInternal       = "internal"
	CodeFailed         = "failed"
)

// WSResult is the reply to a WebSocket command. Type is the command type with a
// "_result" suffix and ID echoes the command ID so clients can pair replies.
type WSResult struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   any    `json:"error,omitempty"` // string, or *types.ValidationError for CodeInvalidRequest
	Data    any    `json:"data,omitempty"`
}

var requests = newRequestValidator()

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// errorCode maps an engine or mixer error to its result code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, audio.ErrSessionGone), errors.Is(err, audio.ErrHandleReleased):
		return CodeSessionGone
	case errors.Is(err, audio.ErrSessionExists):
		return CodeSessionExists
	case errors.Is(err, ducking.ErrAlreadyRunning):
		return CodeEngineRunning
	case errors.Is(err, ducking.ErrLoopTimeout), errors.Is(err, ducking.ErrRestoreTimeout):
		return CodeStopTimeout
	default:
		return CodeFailed
	}
}

// decodeRequest unmarshals and validates the command payload into req. On
// failure it replies to the client and returns false.
func decodeRequest[T any](cmd WSCommand, send chan<- any, req *T) bool {
	if len(cmd.Data) > 0 {
		if err := json.Unmarshal(cmd.Data, req); err != nil {
			reply(send, WSResult{Type: resultType(cmd), ID: cmd.ID, Code: CodeInvalidJSON, Error: "invalid JSON: " + err.Error()})
			return false
		}
	}
	if err := requests.Struct(req); err != nil {
		reply(send, WSResult{Type: resultType(cmd), ID: cmd.ID, Code: CodeInvalidRequest, Error: validationErrors(err)})
		return false
	}
	return true
}

// HandleCommand decodes and validates a T from cmd, runs apply, and replies
// with success or the classified error.
func HandleCommand[T any](cmd WSCommand, send chan<- any, apply func(*T) error) {
	var req T
	if !decodeRequest(cmd, send, &req) {
		return
	}
	if err := apply(&req); err != nil {
		SendError(send, cmd, err)
		return
	}
	SendSuccess(send, cmd, nil)
}

// HandleActionAsync runs action in its own goroutine and replies when it returns.
// Used for commands that wait on fades, such as engine/stop.
func HandleActionAsync(cmd WSCommand, send chan<- any, action func() (any, error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in async command", "command", cmd.Type, "panic", r)
				reply(send, WSResult{Type: resultType(cmd), ID: cmd.ID, Code: CodeInternal, Error: "internal error"})
			}
		}()

		data, err := action()
		if err != nil {
			SendError(send, cmd, err)
			return
		}
		SendSuccess(send, cmd, data)
	}()
}

// SendSuccess replies to cmd with data.
func SendSuccess(send chan<- any, cmd WSCommand, data any) {
	reply(send, WSResult{Type: resultType(cmd), ID: cmd.ID, Success: true, Data: data})
}

// SendError replies to cmd with err and its result code.
func SendError(send chan<- any, cmd WSCommand, err error) {
	reply(send, WSResult{Type: resultType(cmd), ID: cmd.ID, Code: errorCode(err), Error: err.Error()})
}

func resultType(cmd WSCommand) string {
	return cmd.Type + "_result"
}

// reply queues res without blocking; a full queue drops it.
func reply(send chan<- any, res WSResult) {
	select {
	case send <- res:
	default:
		slog.Warn("dropping command result, client queue full", "type", res.Type)
	}
}

// validationErrors converts validator output to a ValidationError keyed by JSON field.
func validationErrors(err error) *types.ValidationError {
	verr := types.NewValidationError()
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("", err.Error(), nil)
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe), fe.Value())
	}
	return verr
}

// fieldMessage describes a failed validation tag.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is not set", fe.Param())
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
