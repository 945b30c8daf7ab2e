// Package query turns a natural-language question into an agent task over a
// preprocessed store and hands it to a runner.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/pipeflow-cli/internal/agent"
	"github.com/KaramelBytes/pipeflow-cli/internal/dataset"
	"github.com/KaramelBytes/pipeflow-cli/internal/logger"
	"github.com/KaramelBytes/pipeflow-cli/internal/store"
)

// TableArg is the manifest key of the encoded table.
const TableArg = "data_df_path"

// AuthorizedImports are the modules the agent's code may import.
var AuthorizedImports = []string{
	"numpy.*", "pandas.*", "sklearn.*", "matplotlib.*", "seaborn.*", "json.*",
	"os.*", "pathlib.*",
}

// Manifest maps argument names to the store files under dir.
func Manifest(dir string) map[string]string {
	l := store.Paths(dir)
	m := map[string]string{TableArg: l.Table}
	for _, col := range dataset.CategoricalColumns {
		m[ITOSArg(col)] = l.ITOS[col]
		m[STOIArg(col)] = l.STOI[col]
	}
	return m
}

// ITOSArg is the manifest key of the itos file of col.
func ITOSArg(col string) string { return col + "_itos_path" }

// STOIArg is the manifest key of the stoi file of col.
func STOIArg(col string) string { return col + "_stoi_path" }

// Instructions renders the task text sent to the agent for q.
func Instructions(q string) string {
	quoted := make([]string, len(dataset.CategoricalColumns))
	for i, c := range dataset.CategoricalColumns {
		quoted[i] = `"` + c + `"`
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Open the pandas dataframe saved at %q and answer the following query: %s.\n\n", TableArg, strings.TrimSpace(q))

	b.WriteString("To help you in your task the values in some columns have been already transformed into numerical values. ")
	b.WriteString("The transformed columns are:\n\n")
	b.WriteString(strings.Join(quoted, ", ") + ".\n\n")
	b.WriteString("The integer to string transformation for each column is provided as a dictionary saved in a json file denoted as \"[column_name]_itos_path\". ")
	b.WriteString("The inverse (string to integer) transformation is provided as a dictionary saved in a json file denoted as \"[column_name]_stoi_path\". ")
	b.WriteString("You must use the provided \"open_json\" function to open the stoi or itos files above. ")
	b.WriteString("Refer to these transformations whenever the query mentions a specific category name. ")
	b.WriteString("Where applicable, refer to any column category by name in your final answer.\n\n")

	b.WriteString("Provide your answer as a detailed report in which insights and any caveats are discussed. ")
	b.WriteString("The report must be clearly readable by a human. Any names must be specified ")
	b.WriteString("(e.g., avoid referring to any object as \"UNK\"). ")
	b.WriteString("If suitable, include visualizations. ")
	b.WriteString("There is also limited time for processing. Code in each iteration should take less than ~10 min to run.\n\n")
	return b.String()
}

// Options configure a dispatch.
type Options struct {
	Model            agent.Model
	PlanningInterval int
}

// Dispatch builds the task for q over the store in dir and runs it. Errors
// from the runner are returned wrapped; nothing is retried.
func Dispatch(ctx context.Context, runner agent.Runner, q, dir string, opts Options) (*agent.Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	task := agent.Task{
		ID:                agent.NewTaskID(),
		Prompt:            Instructions(q),
		Args:              Manifest(dir),
		Tools:             []agent.Tool{agent.OpenJSON{}},
		AuthorizedImports: AuthorizedImports,
		PlanningInterval:  opts.PlanningInterval,
		Model:             opts.Model,
	}
	log := logger.FromContext(ctx)
	log.Debug("dispatching task", "task", task.ID, "model", task.Model.ID, "args", len(task.Args))

	res, err := runner.Run(logger.WithLogger(ctx, log.With("task", task.ID)), task)
	if err != nil {
		return nil, fmt.Errorf("run agent: %w", err)
	}
	return res, nil
}
