package config

import (
	"os"
	"strings"
	"time"

	domainErrors "archgraph/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads, defaults and validates a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := domainErrors.CodeInternal
		if os.IsNotExist(err) {
			code = domainErrors.CodeNotFound
		}
		return nil, domainErrors.AddContext(domainErrors.Wrap(err, code, "read config"), domainErrors.CtxPath, path)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, domainErrors.AddContext(err, domainErrors.CtxPath, path)
	}
	return cfg, nil
}

// Parse decodes TOML config content.
func Parse(content string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeValidationError, "decode config")
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".archgraph"
	}
	if strings.TrimSpace(cfg.Paths.SelfMap) == "" {
		cfg.Paths.SelfMap = "self_map.json"
	}

	if strings.TrimSpace(cfg.History.File) == "" {
		cfg.History.File = "history.db"
	}
	if cfg.History.Window == 0 {
		cfg.History.Window = 5
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 2 * time.Second
	}
	if len(cfg.History.VersionFiles) == 0 {
		cfg.History.VersionFiles = []string{"pyproject.toml", "Cargo.toml", "package.json", "VERSION"}
	}

	if cfg.Topology.Centers == 0 {
		cfg.Topology.Centers = 3
	}
	if cfg.Topology.MemberLimit == 0 {
		cfg.Topology.MemberLimit = 10
	}

	if cfg.Semantic.ViolationLimit == 0 {
		cfg.Semantic.ViolationLimit = 10
	}

	if cfg.Smells.MinOutlierDegree == 0 {
		cfg.Smells.MinOutlierDegree = 3
	}
	if cfg.Smells.ExemptSuffixes == nil {
		cfg.Smells.ExemptSuffixes = []string{"_api.py"}
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MinInterval == 0 {
		cfg.Watch.MinInterval = 2 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "archgraph"
	}

	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

func normalize(cfg *Config) {
	cfg.Paths.ProjectRoot = strings.TrimSpace(cfg.Paths.ProjectRoot)
	cfg.Paths.StateDir = strings.TrimSpace(cfg.Paths.StateDir)
	cfg.Paths.SelfMap = strings.TrimSpace(cfg.Paths.SelfMap)
	cfg.History.File = strings.TrimSpace(cfg.History.File)
	cfg.Observability.Address = strings.TrimSpace(cfg.Observability.Address)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	for i := range cfg.Semantic.Overrides {
		o := &cfg.Semantic.Overrides[i]
		o.Pattern = strings.TrimSpace(o.Pattern)
		o.Role = strings.ToLower(strings.TrimSpace(o.Role))
	}

	files := make([]string, 0, len(cfg.History.VersionFiles))
	for _, f := range cfg.History.VersionFiles {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	cfg.History.VersionFiles = files
}
