package main

import (
	"fmt"
	"strings"

	"github.com/Alias1177/Allocator/internal/model"
	"github.com/Alias1177/Allocator/internal/optimizer"
)

func formatAllocations(allocs []model.Allocation) string {
	if len(allocs) == 0 {
		return "No allocations available\n"
	}

	output := "===== PORTFOLIO ALLOCATIONS =====\n"
	for _, a := range allocs {
		name := a.Strategy
		if s, err := optimizer.ParseStrategy(a.Strategy); err == nil {
			name = s.DisplayName()
		}
		output += fmt.Sprintf("\n%s\n", name)
		output += fmt.Sprintf("  Expected return: %.2f%%  Volatility: %.2f%%\n", a.AnnualReturn*100, a.AnnualVolatility*100)
		output += "  " + formatWeights(a.Assets, a.Weights) + "\n"
		if a.Warning != "" {
			output += fmt.Sprintf("  Warning: %s\n", a.Warning)
		}
	}
	return output
}

func formatWeights(assets []string, weights []float64) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = fmt.Sprintf("%s %.2f%%", assets[i], w*100)
	}
	return strings.Join(parts, ", ")
}
