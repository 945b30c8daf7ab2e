// Package pipeline wires the preprocessing steps and the query dispatch
// into the single run the CLI performs.
package pipeline

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/pipeflow-cli/internal/agent"
	"github.com/KaramelBytes/pipeflow-cli/internal/dataset"
	"github.com/KaramelBytes/pipeflow-cli/internal/logger"
	"github.com/KaramelBytes/pipeflow-cli/internal/query"
	"github.com/KaramelBytes/pipeflow-cli/internal/store"
)

// Options describe one run.
type Options struct {
	Query            string
	SourcePath       string
	OutputDir        string
	Model            agent.Model
	PlanningInterval int
}

// Deps are the collaborators of a run. Zero fields fall back to the real
// implementations, except Runner which is required.
type Deps struct {
	Load   func(ctx context.Context, path string) ([]dataset.RawRow, error)
	Exists func(dir string) bool
	Write  func(dir string, t dataset.EncodedTable, itos map[string]map[int]string, stoi map[string]map[string]int) error
	Runner agent.Runner
	// OnPreprocessed is told how many rows were kept and dropped.
	OnPreprocessed func(kept, dropped int)
}

func (d Deps) withDefaults() Deps {
	if d.Load == nil {
		d.Load = dataset.Load
	}
	if d.Exists == nil {
		d.Exists = store.Exists
	}
	if d.Write == nil {
		d.Write = store.Write
	}
	return d
}

// Run preprocesses the source into OutputDir unless a complete store is
// already there, then dispatches the query.
func Run(ctx context.Context, opts Options, deps Deps) (*agent.Result, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("no agent runner configured")
	}
	if _, err := Preprocess(ctx, opts.SourcePath, opts.OutputDir, deps); err != nil {
		return nil, err
	}
	done := logger.Stage(ctx, "dispatch", "dir", opts.OutputDir)
	res, err := query.Dispatch(ctx, deps.Runner, opts.Query, opts.OutputDir, query.Options{
		Model:            opts.Model,
		PlanningInterval: opts.PlanningInterval,
	})
	done(err)
	return res, err
}

// Preprocess builds the store in dir from source when dir does not already
// hold one. It reports whether the store was (re)computed.
//
// An existing store is reused as is, even if it was built from a different
// source file.
func Preprocess(ctx context.Context, source, dir string, deps Deps) (bool, error) {
	deps = deps.withDefaults()
	log := logger.FromContext(ctx)
	if deps.Exists(dir) {
		log.Debug("reusing preprocessed store; contents are not checked against the source", "dir", dir, "source", source)
		return false, nil
	}

	done := logger.Stage(ctx, "load", "path", source)
	raw, err := deps.Load(ctx, source)
	done(err)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", source, err)
	}

	cleaned := dataset.Clean(raw)
	log.Info("cleaned dataset", "rows", cleaned.Table.Len(), "dropped", cleaned.Dropped)

	enc, vocabs := dataset.Numericalize(cleaned.Table)
	for _, col := range dataset.CategoricalColumns {
		log.Debug("numericalized column", "column", col, "values", vocabs[col].Len())
	}
	itos, stoi := store.Lookups(vocabs)

	done = logger.Stage(ctx, "write", "dir", dir)
	err = deps.Write(dir, enc, itos, stoi)
	done(err)
	if err != nil {
		return false, fmt.Errorf("write store: %w", err)
	}
	if deps.OnPreprocessed != nil {
		deps.OnPreprocessed(cleaned.Table.Len(), cleaned.Dropped)
	}
	return true, nil
}
