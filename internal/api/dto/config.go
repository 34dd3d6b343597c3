package dto

// TerminationConfig mirrors the termination.* solve options.
type TerminationConfig struct {
	MaxTimeSec     int64    `json:"max_time_sec,omitempty"`
	MaxGenerations int64    `json:"max_generations,omitempty"`
	Variation      int      `json:"variation,omitempty"`
	TargetCost     *float64 `json:"target_cost,omitempty"`
}

// SearchConfig mirrors the search.* solve options. Operators names enable
// ruin/recreate families by operator name ("random", "cluster", "worst",
// "related", "route", "cheapest", "regret-2", "regret-3",
// "blink-cheapest"); empty enables all of them.
type SearchConfig struct {
	InitialSolutions int      `json:"initial_solutions,omitempty"`
	Population       int      `json:"population,omitempty"`
	Parallelism      int      `json:"parallelism,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	Operators        []string `json:"operators,omitempty"`
}

// SolveConfig is the optional per-run tuning block of a solve submission.
// Everything omitted falls back to the engine defaults.
type SolveConfig struct {
	Termination *TerminationConfig `json:"termination,omitempty"`
	Search      *SearchConfig      `json:"search,omitempty"`
}
