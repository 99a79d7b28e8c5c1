package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Allocator/internal/dataset/datasettest"
	"github.com/Alias1177/Allocator/internal/optimizer"
	"github.com/Alias1177/Allocator/internal/portfolio"
)

func newTestEngine(t *testing.T) *portfolio.Engine {
	t.Helper()
	mu := []float64{0.0005, 0.0002, 0.0004}
	cov := [][]float64{
		{1e-4, 2e-5, 0},
		{2e-5, 1.5e-4, 1e-5},
		{0, 1e-5, 8e-5},
	}
	e, err := portfolio.New(datasettest.New(datasettest.Normal(5, 150, mu, cov)), 0.01)
	require.NoError(t, err)
	return e
}

func TestRecordAllocations(t *testing.T) {
	tests := []struct {
		name       string
		strategies []optimizer.Strategy
	}{
		{"single strategy", []optimizer.Strategy{optimizer.MinVolatility}},
		{"all strategies", optimizer.Strategies()},
		{"alias strategy", []optimizer.Strategy{optimizer.BlackLitterman}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)

			allocs, err := recordAllocations(context.Background(), e, tt.strategies)
			require.NoError(t, err)
			require.Len(t, allocs, len(tt.strategies))

			recorded := e.RecordedWeights()
			assert.Len(t, recorded, len(tt.strategies))
			for i, st := range tt.strategies {
				got, ok := recorded[st.String()]
				require.True(t, ok, st.String())
				assert.Equal(t, got.Weights, allocs[i].Weights)
				assert.Equal(t, got.Strategy, allocs[i].Strategy)
			}
		})
	}
}

func TestRecordAllocationsCancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := recordAllocations(ctx, e, optimizer.Strategies())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.RecordedWeights())
}
