package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
)

// scriptedRuntime replies with the given contents in order and records the
// requests it saw.
type scriptedRuntime struct {
	replies []string
	seen    []ai.GenerateRequest
}

func (s *scriptedRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.seen = append(s.seen, req)
	if len(s.seen) > len(s.replies) {
		return nil, errors.New("script exhausted")
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: s.replies[len(s.seen)-1]}}},
		Usage:   ai.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}, nil
}

func TestChatRunnerToolThenFinal(t *testing.T) {
	task := lookupTask(t)
	rt := &scriptedRuntime{replies: []string{
		`{"type":"tool_call","tool":"open_json","args":{"file_path":"` + task.Args["category_short_itos_path"] + `"}}`,
		"```json\n{\"type\":\"final\",\"answer\":\"Categories are A and B.\"}\n```",
	}}
	var events []Event
	r := &ChatRunner{Runtime: rt, MaxSteps: 5, OnEvent: func(ev Event) { events = append(events, ev) }}

	res, err := r.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "Categories are A and B.", res.Answer)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 24, res.Usage.TotalTokens)
	require.Len(t, events, 1)
	assert.Equal(t, "open_json", events[0].Message)

	require.Len(t, rt.seen, 2)
	assert.True(t, rt.seen[0].JSONMode)
	assert.Equal(t, "gpt-5", rt.seen[0].Model)
	assert.Contains(t, rt.seen[0].Messages[0].Content, "open_json")
	assert.Contains(t, rt.seen[0].Messages[1].Content, "category_short_itos_path: ")
	last := rt.seen[1].Messages[len(rt.seen[1].Messages)-1]
	assert.True(t, strings.HasPrefix(last.Content, "Observation: "))
	assert.Contains(t, last.Content, `"0":"A"`)
}

func TestChatRunnerStepBudget(t *testing.T) {
	rt := &scriptedRuntime{replies: []string{"not json", `{"type":"plan","plan":"p"}`, `{"type":"nope"}`}}
	r := &ChatRunner{Runtime: rt, MaxSteps: 3, OnEvent: func(Event) {}}
	_, err := r.Run(context.Background(), lookupTask(t))
	assert.True(t, errors.Is(err, ErrMaxSteps), "got %v", err)
}

func TestChatRunnerPlanningRounds(t *testing.T) {
	task := lookupTask(t)
	task.PlanningInterval = 2
	rt := &scriptedRuntime{replies: []string{
		`{"type":"plan","plan":"first"}`,
		`{"type":"log","message":"hmm"}`,
		`{"type":"log","message":"again"}`,
		`{"type":"plan","plan":"second"}`,
		`{"type":"final","answer":42}`,
	}}
	var plans []string
	r := &ChatRunner{Runtime: rt, MaxSteps: 3, OnEvent: func(ev Event) {
		if ev.Kind == msgPlan {
			plans = append(plans, ev.Message)
		}
	}}
	res, err := r.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Answer)
	assert.Equal(t, 3, res.Steps, "planning rounds do not use up steps")
	assert.Equal(t, []string{"first", "second"}, plans)

	require.Len(t, rt.seen, 5)
	assert.Equal(t, 2, countPrefix(rt.seen[4].Messages, "Before your next action"), "steps 1 and 3 should ask for a plan")
}

// planFollowingRuntime answers a plan request with a plan and anything else
// with the next action.
type planFollowingRuntime struct {
	actions []string
	calls   int
	acted   int
}

func (p *planFollowingRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	p.calls++
	reply := `{"type":"plan","plan":"look up the codes, then answer"}`
	if last := req.Messages[len(req.Messages)-1]; !strings.HasPrefix(last.Content, "Before your next action") {
		if p.acted >= len(p.actions) {
			return nil, errors.New("script exhausted")
		}
		reply = p.actions[p.acted]
		p.acted++
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: reply}}}}, nil
}

func TestChatRunnerPlansEveryStep(t *testing.T) {
	task := lookupTask(t)
	task.PlanningInterval = 1
	rt := &planFollowingRuntime{actions: []string{`{"type":"final","answer":"done"}`}}
	r := &ChatRunner{Runtime: rt, MaxSteps: 5, OnEvent: func(Event) {}}

	res, err := r.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Answer)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, 2, rt.calls)
}

func TestChatRunnerPlansEveryStepWithTool(t *testing.T) {
	task := lookupTask(t)
	task.PlanningInterval = 1
	rt := &planFollowingRuntime{actions: []string{
		`{"type":"tool_call","tool":"open_json","args":{"file_path":"` + task.Args["category_short_itos_path"] + `"}}`,
		`{"type":"final","answer":"A and B"}`,
	}}
	var kinds []string
	r := &ChatRunner{Runtime: rt, MaxSteps: 2, OnEvent: func(ev Event) { kinds = append(kinds, ev.Kind) }}

	res, err := r.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "A and B", res.Answer)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 4, rt.calls)
	assert.Equal(t, []string{msgPlan, msgToolCall, msgPlan}, kinds)
}

func TestChatRunnerSkippedPlanCountsAsAction(t *testing.T) {
	task := lookupTask(t)
	task.PlanningInterval = 1
	rt := &scriptedRuntime{replies: []string{`{"type":"final","answer":"straight away"}`}}
	r := &ChatRunner{Runtime: rt, OnEvent: func(Event) {}}

	res, err := r.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "straight away", res.Answer)
	assert.Len(t, rt.seen, 1)
}

func TestChatRunnerClipsLargeObservations(t *testing.T) {
	task := lookupTask(t)
	rt := &scriptedRuntime{replies: []string{
		`{"type":"tool_call","tool":"open_json","args":{"file_path":"` + task.Args["category_short_itos_path"] + `"}}`,
		`{"type":"final","answer":"ok"}`,
	}}
	r := &ChatRunner{Runtime: rt, MaxObservationTokens: 4, OnEvent: func(Event) {}}

	_, err := r.Run(context.Background(), task)
	require.NoError(t, err)
	last := rt.seen[1].Messages[len(rt.seen[1].Messages)-1]
	assert.True(t, strings.HasSuffix(last.Content, "...(truncated)"), "got %q", last.Content)
}

func countPrefix(msgs []ai.Message, prefix string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m.Content, prefix) {
			n++
		}
	}
	return n
}

func TestChatRunnerPropagatesRuntimeError(t *testing.T) {
	r := &ChatRunner{Runtime: &scriptedRuntime{}}
	_, err := r.Run(context.Background(), lookupTask(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestParseMessage(t *testing.T) {
	m, err := parseMessage(`Sure! {"type":"final","answer":"ok"} hope that helps`)
	require.NoError(t, err)
	assert.Equal(t, msgFinal, m.Type)
	assert.Equal(t, "ok", answerText(m.Answer))

	_, err = parseMessage("plain text")
	assert.ErrorIs(t, err, errNotJSON)

	assert.Equal(t, `{"mean":1.5}`, answerText([]byte(`{"mean":1.5}`)))
	assert.Equal(t, "", answerText(nil))
}

func TestOpenJSON(t *testing.T) {
	task := lookupTask(t)
	out, err := OpenJSON{}.Call(context.Background(), map[string]any{"file_path": task.Args["category_short_itos_path"]})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"0": "A", "1": "B"}, out)

	_, err = OpenJSON{}.Call(context.Background(), map[string]any{})
	assert.Error(t, err)
	_, err = OpenJSON{}.Call(context.Background(), map[string]any{"file_path": "/does/not/exist.json"})
	assert.Error(t, err)
}

func TestNewTaskEnvelopeOmitsKey(t *testing.T) {
	env := newTaskEnvelope(lookupTask(t))
	assert.Equal(t, msgTask, env.Type)
	require.Len(t, env.Tools, 1)
	assert.Equal(t, "open_json", env.Tools[0].Name)
	assert.Equal(t, "gpt-5", env.Model.ID)
	assert.NotEqual(t, "", env.ID)
}
