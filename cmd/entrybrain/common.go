package main

import (
	"context"
	"strconv"

	"github.com/metalagman/entrybrain/internal/analyzer"
	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/db"
	"github.com/metalagman/entrybrain/internal/inference"
	"github.com/metalagman/entrybrain/internal/metrics"
	"github.com/metalagman/entrybrain/internal/pipeline"
)

func openStore(ctx context.Context, c config.DatabaseConfig) (*db.Store, func(), error) {
	storeDB, err := db.Open(ctx, c)
	if err != nil {
		return nil, func() {}, err
	}
	return db.NewStore(storeDB), func() { _ = storeDB.Close() }, nil
}

func newAnalyzer(ctx context.Context, c config.Config, store *db.Store, rec *metrics.Recorder) (*analyzer.Analyzer, error) {
	completer, err := inference.New(ctx, c.Inference, rec)
	if err != nil {
		return nil, err
	}
	pipe := pipeline.New(completer, store, c.Pipeline, c.Inference.CallTimeout, pipeline.WithMetrics(rec))
	return analyzer.New(store, pipe, c.Pipeline, analyzer.WithMetrics(rec)), nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
