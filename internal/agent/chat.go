package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
	"github.com/KaramelBytes/pipeflow-cli/internal/logger"
	"github.com/KaramelBytes/pipeflow-cli/internal/utils"
)

// ChatRunner drives a chat model directly, with the tools executed in
// process. It has no code interpreter, so it suits questions that can be
// answered from the lookup files alone.
type ChatRunner struct {
	Runtime  ai.Runtime
	MaxSteps int
	// MaxObservationTokens bounds each tool result fed back to the model.
	MaxObservationTokens int
	OnEvent              EventFunc
}

const defaultMaxSteps = 20

const (
	planRequest = "Before your next action, reply with a plan envelope restating the facts you know and the steps left."
	actRequest  = "Now take your next action: reply with a tool_call or final envelope."
)

// Run loops until the model sends a final envelope or the step budget is
// spent. A planning round precedes every PlanningInterval-th action step and
// does not count against the budget.
func (r *ChatRunner) Run(ctx context.Context, task Task) (*Result, error) {
	if r.Runtime == nil {
		return nil, fmt.Errorf("chat runner has no runtime")
	}
	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	obsLimit := r.MaxObservationTokens
	if obsLimit <= 0 {
		obsLimit = 4000
	}
	log := logger.FromContext(ctx).With("task", task.ID, "model", task.Model.ID)

	c := &chatSession{rt: r.Runtime, task: task, res: &Result{TaskID: task.ID}}
	c.msgs = []ai.Message{
		{Role: "system", Content: chatSystemPrompt(task)},
		{Role: "user", Content: chatTaskPrompt(task)},
	}
	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			content string
			have    bool
		)
		if task.PlanningInterval > 0 && (step-1)%task.PlanningInterval == 0 {
			c.msgs = append(c.msgs, ai.Message{Role: "user", Content: planRequest})
			reply, err := c.complete(ctx)
			if err != nil {
				return nil, fmt.Errorf("step %d: plan: %w", step, err)
			}
			if m, err := parseMessage(reply); err == nil && m.Type == msgPlan {
				emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgPlan, Message: m.Plan})
				c.msgs = append(c.msgs, ai.Message{Role: "user", Content: actRequest})
			} else {
				// The model skipped the plan; its reply is this step's action.
				content, have = reply, true
			}
		}
		log.Debug("chat step", "step", step, "tokens", utils.CountTokens(joinContent(c.msgs)))
		if !have {
			reply, err := c.complete(ctx)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", step, err)
			}
			content = reply
		}
		c.res.Steps = step

		m, err := parseMessage(content)
		if err != nil {
			c.msgs = append(c.msgs, ai.Message{Role: "user", Content: "Your reply was not a JSON envelope. Reply with exactly one JSON object as described."})
			continue
		}
		switch m.Type {
		case msgFinal:
			c.res.Answer = answerText(m.Answer)
			return c.res, nil
		case msgPlan:
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgPlan, Message: m.Plan})
		case msgLog:
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgLog, Message: m.Message})
		case msgToolCall:
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgToolCall, Message: m.Tool})
			c.msgs = append(c.msgs, ai.Message{Role: "user", Content: observation(ctx, task.Tools, m, obsLimit)})
		default:
			c.msgs = append(c.msgs, ai.Message{Role: "user", Content: fmt.Sprintf("Unknown envelope type %q. Use tool_call, plan or final.", m.Type)})
		}
	}
	return nil, fmt.Errorf("%w (%d steps)", ErrMaxSteps, maxSteps)
}

// chatSession is the conversation of one Run.
type chatSession struct {
	rt   ai.Runtime
	task Task
	msgs []ai.Message
	res  *Result
}

// complete sends the conversation and appends the reply to it.
func (c *chatSession) complete(ctx context.Context) (string, error) {
	resp, err := c.rt.Generate(ctx, ai.GenerateRequest{Model: c.task.Model.ID, Messages: c.msgs, JSONMode: true})
	if err != nil {
		return "", err
	}
	addUsage(&c.res.Usage, resp.Usage)
	content := resp.Content()
	c.msgs = append(c.msgs, ai.Message{Role: "assistant", Content: content})
	return content, nil
}

func observation(ctx context.Context, tools []Tool, m message, limit int) string {
	out, err := callTool(ctx, tools, m.Tool, m.Args)
	if err != nil {
		return "Observation: error: " + err.Error()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "Observation: error: " + err.Error()
	}
	text, _ := utils.ClipTokens(string(b), limit)
	return "Observation: " + text
}

func chatSystemPrompt(task Task) string {
	var b strings.Builder
	b.WriteString("You are a data analysis agent. Each reply must be exactly one JSON object of one of these forms:\n")
	b.WriteString(`{"type":"tool_call","tool":"<name>","args":{...}}` + "\n")
	b.WriteString(`{"type":"plan","plan":"<text>"}` + "\n")
	b.WriteString(`{"type":"final","answer":"<report>"}` + "\n\n")
	b.WriteString("Available tools:\n")
	for _, t := range task.Tools {
		inputs := t.Inputs()
		names := make([]string, 0, len(inputs))
		for n := range inputs {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		for _, n := range names {
			fmt.Fprintf(&b, "    %s: %s\n", n, inputs[n])
		}
	}
	b.WriteString("\nYou cannot run code. Answer from the tool results; say so if the question needs computation over the table.\n")
	return b.String()
}

func chatTaskPrompt(task Task) string {
	var b strings.Builder
	b.WriteString(task.Prompt)
	if len(task.Args) > 0 {
		keys := make([]string, 0, len(task.Args))
		for k := range task.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nYou have been provided with these additional arguments:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, task.Args[k])
		}
	}
	return b.String()
}

func joinContent(msgs []ai.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
	}
	return b.String()
}

func addUsage(dst *ai.Usage, u ai.Usage) {
	dst.PromptTokens += u.PromptTokens
	dst.CompletionTokens += u.CompletionTokens
	dst.TotalTokens += u.TotalTokens
}
