package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: ARCHGRAPH_[SECTION]_[KEY] (e.g., ARCHGRAPH_HISTORY_WINDOW).
// Unparseable values are ignored. Callers should Validate afterwards.
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "ARCHGRAPH_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.StateDir, "ARCHGRAPH_PATHS_STATE_DIR")
	setEnvString(&cfg.Paths.SelfMap, "ARCHGRAPH_PATHS_SELF_MAP")

	// History
	setEnvBoolPtr(&cfg.History.Enabled, "ARCHGRAPH_HISTORY_ENABLED")
	setEnvString(&cfg.History.File, "ARCHGRAPH_HISTORY_FILE")
	setEnvInt(&cfg.History.Window, "ARCHGRAPH_HISTORY_WINDOW")
	setEnvDuration(&cfg.History.BusyTimeout, "ARCHGRAPH_HISTORY_BUSY_TIMEOUT")
	setEnvList(&cfg.History.VersionFiles, "ARCHGRAPH_HISTORY_VERSION_FILES")

	// Topology
	setEnvInt(&cfg.Topology.Centers, "ARCHGRAPH_TOPOLOGY_CENTERS")
	setEnvInt(&cfg.Topology.MaxDepth, "ARCHGRAPH_TOPOLOGY_MAX_DEPTH")
	setEnvInt(&cfg.Topology.MemberLimit, "ARCHGRAPH_TOPOLOGY_MEMBER_LIMIT")

	// Semantic
	setEnvInt(&cfg.Semantic.ViolationLimit, "ARCHGRAPH_SEMANTIC_VIOLATION_LIMIT")

	// Smells
	setEnvBoolPtr(&cfg.Smells.Enabled, "ARCHGRAPH_SMELLS_ENABLED")
	setEnvInt(&cfg.Smells.MinOutlierDegree, "ARCHGRAPH_SMELLS_MIN_OUTLIER_DEGREE")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "ARCHGRAPH_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.MinInterval, "ARCHGRAPH_WATCH_MIN_INTERVAL")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "ARCHGRAPH_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "ARCHGRAPH_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "ARCHGRAPH_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvFloat64(&cfg.Observability.SampleRate, "ARCHGRAPH_OBSERVABILITY_SAMPLE_RATE")
	setEnvString(&cfg.Observability.ServiceName, "ARCHGRAPH_OBSERVABILITY_SERVICE_NAME")

	// Logging
	if setEnvString(&cfg.Logging.Level, "ARCHGRAPH_LOGGING_LEVEL") {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	}
}

func logOverride(key, val string) {
	slog.Info("applying env override", "key", key, "value", val)
}

func setEnvString(target *string, key string) bool {
	if val, ok := os.LookupEnv(key); ok {
		logOverride(key, val)
		*target = strings.TrimSpace(val)
		return true
	}
	return false
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		logOverride(key, val)
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			logOverride(key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
		if err == nil {
			logOverride(key, val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
		if err == nil {
			logOverride(key, val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			logOverride(key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			logOverride(key, val)
			*target = d
		}
	}
}
