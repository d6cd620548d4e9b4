package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kdcokenny/opencode-background-agents/core"
	"github.com/kdcokenny/opencode-background-agents/engine"
)

// NewDelegateTool returns the delegate_task tool: submit a task to a named
// background worker and return its id immediately.
func NewDelegateTool(e *engine.Engine) *FunctionTool {
	return NewFunctionTool(
		"delegate_task",
		"Delegate a task to a background worker. Returns a task id immediately; "+
			"you will be notified when the task finishes. Do not poll for results.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{
					"type":        "string",
					"description": "Complete instructions for the background worker",
				},
				"agent": map[string]any{
					"type":        "string",
					"description": "Name of the specialist worker to run the task",
				},
			},
			"required": []string{"description", "agent"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			description, _ := args["description"].(string)
			agent, _ := args["agent"].(string)

			id, err := e.Submit(tc.Context, engine.SubmitRequest{
				OwnerScope:   tc.OwnerScope,
				RequestID:    tc.RequestID,
				OwnerRole:    tc.OwnerRole,
				Instructions: description,
				WorkerKind:   agent,
				Profile:      tc.Profile,
			})
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Background task %s started. You will be notified when it finishes; do not poll for its result.", id), nil
		},
	)
}

// NewReadTool returns the read_task_result tool: fetch the full result of a
// delegation, blocking until it resolves when still running.
func NewReadTool(e *engine.Engine) *FunctionTool {
	return NewFunctionTool(
		"read_task_result",
		"Read the full result of a background task by id. Blocks until the task "+
			"finishes when it is still running.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "Identifier returned by delegate_task",
				},
			},
			"required": []string{"task_id"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, _ := args["task_id"].(string)
			rec, err := e.Read(tc.Context, tc.OwnerScope, id)
			if errors.Is(err, core.ErrNotFound) {
				return nil, NewToolError("read_task_result", fmt.Sprintf("no task named %s", id), "NOT_FOUND")
			}
			if err != nil {
				return nil, err
			}
			return string(rec.Encode()), nil
		},
	)
}

// NewListTool returns the list_tasks tool: enumerate every known delegation
// under the caller's scope with its state and title.
func NewListTool(e *engine.Engine) *FunctionTool {
	return NewFunctionTool(
		"list_tasks",
		"List all background tasks for this session with their states and titles.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			recs, err := e.List(tc.Context, tc.OwnerScope)
			if err != nil {
				return nil, err
			}
			if len(recs) == 0 {
				return "No background tasks.", nil
			}
			var b strings.Builder
			for _, rec := range recs {
				fmt.Fprintf(&b, "- %s (%s): %s\n", rec.ID, rec.State, rec.Title)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	)
}

// NewCancelTool returns the cancel_task tool: stop a running delegation and
// remove its stored result.
func NewCancelTool(e *engine.Engine) *FunctionTool {
	return NewFunctionTool(
		"cancel_task",
		"Cancel a background task by id, removing any stored result.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "Identifier returned by delegate_task",
				},
			},
			"required": []string{"task_id"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, _ := args["task_id"].(string)
			deleted, err := e.Cancel(tc.Context, tc.OwnerScope, id)
			if errors.Is(err, core.ErrNotFound) {
				return nil, NewToolError("cancel_task", fmt.Sprintf("no task named %s", id), "NOT_FOUND")
			}
			if err != nil {
				return nil, err
			}
			if deleted {
				return fmt.Sprintf("Task %s cancelled and its stored result removed.", id), nil
			}
			return fmt.Sprintf("Task %s cancelled.", id), nil
		},
	)
}

// Tools returns the full delegation tool set for an engine.
func Tools(e *engine.Engine) []Tool {
	return []Tool{
		NewDelegateTool(e),
		NewReadTool(e),
		NewListTool(e),
		NewCancelTool(e),
	}
}
