package optimizer

import (
	"fmt"
	"strings"

	"github.com/Alias1177/Allocator/internal/model"
)

// Strategy identifies an allocation method
type Strategy int

const (
	MaxSharpe Strategy = iota
	MinVolatility
	EqualWeight
	MaxDiversification
	EqualRiskContribution
	MinCVaR
	HRP
	// BlackLitterman has no view model yet and allocates like MaxSharpe.
	BlackLitterman
)

var strategyKeys = map[Strategy]string{
	MaxSharpe:             "max_sharpe",
	MinVolatility:         "min_vol",
	EqualWeight:           "equal_weight",
	MaxDiversification:    "max_div",
	EqualRiskContribution: "ERC",
	MinCVaR:               "min_cvar",
	HRP:                   "HRP",
	BlackLitterman:        "black_litterman",
}

var strategyNames = map[Strategy]string{
	MaxSharpe:             "Maximum Sharpe",
	MinVolatility:         "Minimum Volatility",
	EqualWeight:           "Equal Weight",
	MaxDiversification:    "Maximum Diversification",
	EqualRiskContribution: "Equal Risk Contribution",
	MinCVaR:               "Minimum CVaR",
	HRP:                   "Hierarchical Risk Parity",
	BlackLitterman:        "Black-Litterman",
}

// lowercase key -> strategy, including the aliases accepted from the CLI
var strategyLookup = map[string]Strategy{
	"max_sharpe":      MaxSharpe,
	"sharpe":          MaxSharpe,
	"min_vol":         MinVolatility,
	"min_volatility":  MinVolatility,
	"equal_weight":    EqualWeight,
	"eq":              EqualWeight,
	"max_div":         MaxDiversification,
	"erc":             EqualRiskContribution,
	"min_cvar":        MinCVaR,
	"cvar":            MinCVaR,
	"hrp":             HRP,
	"black_litterman": BlackLitterman,
	"bl":              BlackLitterman,
}

// String returns the canonical key, e.g. "max_sharpe"
func (s Strategy) String() string {
	if key, ok := strategyKeys[s]; ok {
		return key
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// DisplayName returns a human-readable label
func (s Strategy) DisplayName() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return s.String()
}

// ParseStrategy resolves a case-insensitive key or alias
func ParseStrategy(key string) (Strategy, error) {
	s, ok := strategyLookup[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", model.ErrUnsupportedStrategy, key)
	}
	return s, nil
}

// Strategies returns the seven distinct allocation methods in canonical order
func Strategies() []Strategy {
	return []Strategy{MaxSharpe, MinVolatility, EqualWeight, MaxDiversification, EqualRiskContribution, MinCVaR, HRP}
}
