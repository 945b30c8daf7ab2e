package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/KaramelBytes/pipeflow-cli/internal/ai"
	"github.com/KaramelBytes/pipeflow-cli/internal/logger"
)

// ExecRunner runs the agent as an external process, for example a Python
// bridge around a code-execution agent framework.
//
// The task is written to the process as one JSON line on stdin. The process
// then writes JSON lines on stdout: "log" and "plan" lines are relayed,
// "tool_call" lines are answered on stdin with a "tool_result" line, and a
// "final" line carries the report. Anything on stderr is passed through.
type ExecRunner struct {
	Command []string
	// Env is appended to the current environment of the process.
	Env     []string
	Stderr  io.Writer
	OnEvent EventFunc
}

// Run starts the process, serves its tool calls and waits for it to exit.
// No timeout is applied; only ctx stops the process early.
func (r *ExecRunner) Run(ctx context.Context, task Task) (*Result, error) {
	if len(r.Command) == 0 {
		return nil, errors.New("agent command is not configured")
	}
	log := logger.FromContext(ctx).With("task", task.ID)

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Env = append(os.Environ(), r.Env...)
	if env := ai.APIKeyEnv(task.Model.Provider); env != "" && task.Model.APIKey != "" {
		cmd.Env = append(cmd.Env, env+"="+task.Model.APIKey)
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent %s: %w", r.Command[0], err)
	}
	log.Debug("agent started", "command", r.Command[0], "pid", cmd.Process.Pid)

	res, protoErr := r.serve(ctx, task, stdin, stdout)
	_ = stdin.Close()
	// Drain so the process never blocks writing after we stop reading.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitErr != nil {
		if protoErr != nil {
			return nil, fmt.Errorf("agent process: %w (protocol: %v)", waitErr, protoErr)
		}
		return nil, fmt.Errorf("agent process: %w", waitErr)
	}
	if protoErr != nil {
		return nil, protoErr
	}
	return res, nil
}

func (r *ExecRunner) serve(ctx context.Context, task Task, stdin io.Writer, stdout io.Reader) (*Result, error) {
	enc := json.NewEncoder(stdin)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(newTaskEnvelope(task)); err != nil {
		return nil, fmt.Errorf("send task: %w", err)
	}

	res := &Result{TaskID: task.ID}
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		m, err := parseMessage(line)
		if err != nil {
			// Stray prints from the agent's code are relayed as logs.
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgLog, Message: line})
			continue
		}
		switch m.Type {
		case msgLog:
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgLog, Message: m.Message})
		case msgPlan:
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgPlan, Message: m.Plan})
		case msgToolCall:
			res.Steps++
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgToolCall, Message: m.Tool})
			reply := toolResult{Type: msgToolResult, ID: m.ID}
			out, err := callTool(ctx, task.Tools, m.Tool, m.Args)
			if err != nil {
				reply.Error = err.Error()
			} else {
				reply.Result = out
			}
			if err := enc.Encode(reply); err != nil {
				return nil, fmt.Errorf("send tool result: %w", err)
			}
		case msgFinal:
			res.Answer = answerText(m.Answer)
			return res, nil
		default:
			emit(ctx, r.OnEvent, Event{TaskID: task.ID, Kind: msgLog, Message: line})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read agent output: %w", err)
	}
	return nil, ErrNoAnswer
}
