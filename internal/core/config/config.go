package config

import "time"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	History       History       `toml:"history"`
	Topology      Topology      `toml:"topology"`
	Semantic      Semantic      `toml:"semantic"`
	Smells        Smells        `toml:"smells"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
	Logging       Logging       `toml:"logging"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
	SelfMap     string `toml:"self_map"`
}

type History struct {
	Enabled      *bool         `toml:"enabled"`
	File         string        `toml:"file"`
	Window       int           `toml:"window"`
	BusyTimeout  time.Duration `toml:"busy_timeout"`
	VersionFiles []string      `toml:"version_files"`
}

// IsEnabled reports whether history recording is on (the default).
func (h History) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

type Topology struct {
	Centers     int `toml:"centers"`
	MaxDepth    int `toml:"max_depth"`
	MemberLimit int `toml:"member_limit"`
}

type Semantic struct {
	ViolationLimit int            `toml:"violation_limit"`
	Overrides      []RoleOverride `toml:"overrides"`
}

type RoleOverride struct {
	Pattern string `toml:"pattern"`
	Role    string `toml:"role"`
}

type Smells struct {
	Enabled          *bool    `toml:"enabled"`
	MinOutlierDegree int      `toml:"min_outlier_degree"`
	ExemptSuffixes   []string `toml:"exempt_suffixes"`
}

// IsEnabled reports whether the built-in smell detector runs (the default).
func (s Smells) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	MinInterval time.Duration `toml:"min_interval"`
}

type Observability struct {
	Enabled      bool    `toml:"enabled"`
	Address      string  `toml:"address"`
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	SampleRate   float64 `toml:"sample_rate"`
	ServiceName  string  `toml:"service_name"`
}

type Logging struct {
	Level string `toml:"level"`
}

// Default returns a validated configuration for running without a file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalize(cfg)
	return cfg
}
