package cli

import (
	"flag"
	"io"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath    string
	selfMap       string
	root          string
	watch         bool
	jsonOutput    bool
	yamlOutput    bool
	noHistory     bool
	window        int
	centers       int
	trace         bool
	historyReport bool
	historyJSON   string
	queryModules  bool
	queryFilter   string
	queryModule   string
	queryTrace    string
	queryCQL      string
	queryTrends   bool
	queryLimit    int
	since         string
	diagram       string
	diagramOut    string
	injectMD      string
	injectMarker  string
	verbose       bool
	version       bool
	args          []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("archgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: discover archgraph.toml)")
	fs.StringVar(&opts.selfMap, "selfmap", "", "Path to the self-map JSON (overrides paths.self_map)")
	fs.StringVar(&opts.root, "root", "", "Project root (overrides paths.project_root)")
	fs.BoolVar(&opts.watch, "watch", false, "Re-run analysis whenever the self-map changes")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the analysis report as JSON")
	fs.BoolVar(&opts.yamlOutput, "yaml", false, "Print the analysis report as YAML")
	fs.BoolVar(&opts.noHistory, "no-history", false, "Do not record this run in history")
	fs.IntVar(&opts.window, "window", 0, "Trend window in history points (overrides history.window)")
	fs.IntVar(&opts.centers, "centers", 0, "Number of topology centers (overrides topology.centers)")
	fs.BoolVar(&opts.trace, "trace", false, "Trace shortest import chain between two modules")
	fs.BoolVar(&opts.historyReport, "history-report", false, "Print the evolution report and exit")
	fs.StringVar(&opts.historyJSON, "history-json", "", "Export the full history as JSON to this path ('-' for stdout, .zst suffix compresses)")
	fs.BoolVar(&opts.queryModules, "query-modules", false, "List modules with role, layer and fan counts")
	fs.StringVar(&opts.queryFilter, "query-filter", "", "Optional substring filter for --query-modules")
	fs.StringVar(&opts.queryModule, "query-module", "", "Print module details")
	fs.StringVar(&opts.queryTrace, "query-trace", "", "Print dependency trace (<from>:<to>)")
	fs.StringVar(&opts.queryCQL, "query", "", "Run a module query, e.g. \"SELECT modules WHERE fan_in > 3\"")
	fs.BoolVar(&opts.queryTrends, "query-trends", false, "Print the recorded history slice")
	fs.IntVar(&opts.queryLimit, "query-limit", 0, "Optional limit/depth control for query modes")
	fs.StringVar(&opts.since, "since", "", "Only include history at/after this timestamp (RFC3339 or YYYY-MM-DD)")
	fs.StringVar(&opts.diagram, "diagram", "", "Print a dependency diagram instead of the report (mermaid or dot)")
	fs.StringVar(&opts.diagramOut, "diagram-out", "", "Write the diagram to this path instead of stdout")
	fs.StringVar(&opts.injectMD, "inject-markdown", "", "Replace the marked block of this Markdown file with the diagram")
	fs.StringVar(&opts.injectMarker, "inject-marker", "architecture", "Marker name used by --inject-markdown")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
