package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/KaramelBytes/pipeflow-cli/internal/logger"
)

// Message types of the line protocol spoken with the agent. Every message
// is a single JSON object on its own line.
const (
	msgTask       = "task"
	msgLog        = "log"
	msgPlan       = "plan"
	msgToolCall   = "tool_call"
	msgToolResult = "tool_result"
	msgFinal      = "final"
)

// message is what the agent sends.
type message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	Args    map[string]any  `json:"args,omitempty"`
	Message string          `json:"message,omitempty"`
	Plan    string          `json:"plan,omitempty"`
	Answer  json.RawMessage `json:"answer,omitempty"`
}

type toolResult struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type toolSpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Inputs      map[string]string `json:"inputs"`
}

type modelSpec struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
	BaseURL  string `json:"base_url,omitempty"`
}

// taskEnvelope is the first line sent to an agent process. The API key is
// never part of it.
type taskEnvelope struct {
	Type              string            `json:"type"`
	ID                string            `json:"id"`
	Prompt            string            `json:"prompt"`
	Args              map[string]string `json:"args"`
	Tools             []toolSpec        `json:"tools"`
	AuthorizedImports []string          `json:"authorized_imports"`
	PlanningInterval  int               `json:"planning_interval"`
	Model             modelSpec         `json:"model"`
}

func newTaskEnvelope(t Task) taskEnvelope {
	env := taskEnvelope{
		Type:              msgTask,
		ID:                t.ID,
		Prompt:            t.Prompt,
		Args:              t.Args,
		AuthorizedImports: t.AuthorizedImports,
		PlanningInterval:  t.PlanningInterval,
		Model:             modelSpec{Provider: t.Model.Provider, ID: t.Model.ID, BaseURL: t.Model.BaseURL},
	}
	for _, tool := range t.Tools {
		env.Tools = append(env.Tools, toolSpec{Name: tool.Name(), Description: tool.Description(), Inputs: tool.Inputs()})
	}
	return env
}

var errNotJSON = errors.New("no json object in message")

// parseMessage decodes one agent message. Chat models sometimes wrap the
// object in prose or a code fence, so only the outermost braces are used.
func parseMessage(s string) (message, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return message{}, errNotJSON
	}
	var m message
	if err := json.Unmarshal([]byte(s[start:end+1]), &m); err != nil {
		return message{}, err
	}
	return m, nil
}

// answerText renders a final answer. String answers are unquoted; anything
// else is kept as its JSON text.
func answerText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func logEvent(ctx context.Context, ev Event) {
	logger.FromContext(ctx).Info("agent "+ev.Kind, "task", ev.TaskID, "message", ev.Message)
}
