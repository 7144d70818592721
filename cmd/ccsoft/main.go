// Command ccsoft decodes a reliability matrix against a convolutional code
// using the Fano or stack sequential decoder, reporting run statistics and
// optionally a Graphviz export of the search tree and a SQLite history
// record.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dbehnke/ccsoft/internal/ccencoding"
	"github.com/dbehnke/ccsoft/internal/config"
	"github.com/dbehnke/ccsoft/internal/dot"
	"github.com/dbehnke/ccsoft/internal/fano"
	"github.com/dbehnke/ccsoft/internal/history"
	"github.com/dbehnke/ccsoft/internal/reliability"
	"github.com/dbehnke/ccsoft/internal/sequential"
	"github.com/dbehnke/ccsoft/internal/stack"
	"github.com/dbehnke/ccsoft/internal/tree"
	"github.com/spf13/pflag"
)

const (
	exitSuccess       = 0
	exitConfiguration = 1
	exitInputMismatch = 2
	exitResourceAbort = 3
	exitAlgorithmic   = 4
)

// decoder is the subset of the Fano and stack decoder APIs the CLI drives;
// both *fano.Decoder and *stack.Decoder satisfy it through their embedded
// sequential.Base and their own methods.
type decoder interface {
	Decode(relmat *reliability.Matrix) ([]ccencoding.Symbol, error)
	PrintStats(w io.Writer, success bool)
	Root() *tree.Node
	SetMetricLimit(limit float64)
	SetNodeLimit(limit uint64)
}

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("ccsoft", pflag.ContinueOnError)

	configFile := fs.String("config", "", "path to a YAML configuration file")
	decoderKind := fs.String("decoder", "", "fano or stack")
	constraints := fs.IntSlice("constraint", nil, "register width per input (repeatable)")
	genpolyFlags := fs.StringArray("genpoly", nil, "i:o1,o2,... generator polynomials for input i (repeatable)")
	initThreshold := fs.Float64("init-threshold", 0, "fano: initial path metric threshold")
	deltaThreshold := fs.Float64("delta-threshold", 0, "fano: threshold grid step")
	deltaInitThreshold := fs.Float64("delta-init-threshold", 0, "fano: unloop step, negative enables unlooping")
	cacheSize := fs.Uint64("cache-size", 0, "fano: bounded tree cache size, 0 disables")
	metricLimit := fs.Float64("metric-limit", 0, "fano: abort once the threshold falls below this")
	nodeLimit := fs.Uint64("node-limit", 0, "abort once more than this many nodes have been created")
	giveupThreshold := fs.Float64("giveup-threshold", 0, "stack: abort once the top-of-stack metric falls to or below this")
	tailZeros := fs.Bool("tail-zeros", true, "require the trailing m-1 symbols of the message to be zero")
	edgeBias := fs.Float64("edge-bias", 0, "subtracted from every edge metric")
	verbosity := fs.Int("verbosity", 0, "decoder verbosity level")
	dotPath := fs.String("dot", "", "path to write a Graphviz export of the final tree")
	historyDB := fs.String("history-db", "", "path to the SQLite run-history database, empty disables history")
	matrixFile := fs.String("matrix", "", "path to a JSON reliability matrix fixture")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitSuccess
		}
		log.Printf("ccsoft: %v", err)
		return exitConfiguration
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Printf("ccsoft: %v", err)
		return exitConfiguration
	}

	if err := overlayFlags(cfg, fs, *decoderKind, *constraints, *genpolyFlags, *initThreshold,
		*deltaThreshold, *deltaInitThreshold, *cacheSize, *metricLimit, *nodeLimit,
		*giveupThreshold, *tailZeros, *edgeBias, *verbosity, *dotPath, *historyDB, *matrixFile); err != nil {
		log.Printf("ccsoft: %v", err)
		return exitConfiguration
	}

	if err := config.Validate(cfg); err != nil {
		log.Printf("ccsoft: %v", err)
		return exitConfiguration
	}

	d, err := buildDecoder(cfg)
	if err != nil {
		log.Printf("ccsoft: %v", err)
		return exitConfiguration
	}

	n, err := codeOutputWidth(cfg)
	if err != nil {
		log.Printf("ccsoft: %v", err)
		return exitConfiguration
	}

	if cfg.MatrixFile == "" {
		log.Printf("ccsoft: --matrix is required")
		return exitConfiguration
	}
	relmat, err := loadMatrix(cfg.MatrixFile, n)
	if err != nil {
		log.Printf("ccsoft: %v", err)
		return exitConfiguration
	}

	startedAt := time.Now()
	message, decodeErr := d.Decode(relmat)
	exitCode := exitSuccess
	failureReason := ""

	if decodeErr != nil {
		failureReason = decodeErr.Error()
		switch {
		case errors.Is(decodeErr, sequential.ErrShortMatrix) || errors.Is(decodeErr, sequential.ErrSymbolWidth):
			exitCode = exitInputMismatch
		case errors.Is(decodeErr, sequential.ErrNodeLimit):
			exitCode = exitResourceAbort
		default:
			exitCode = exitAlgorithmic
		}
		log.Printf("ccsoft: decode failed: %v", decodeErr)
	} else {
		log.Printf("ccsoft: decoded message: %v", message)
	}

	d.PrintStats(os.Stdout, decodeErr == nil)

	if cfg.DotPath != "" {
		if root := d.Root(); root != nil {
			if err := writeDot(cfg.DotPath, root); err != nil {
				log.Printf("ccsoft: dot export failed: %v", err)
			}
		}
	}

	if cfg.HistoryDB != "" {
		if err := recordHistory(cfg, startedAt, message != nil, failureReason); err != nil {
			log.Printf("ccsoft: history recording failed: %v", err)
		}
	}

	return exitCode
}

func writeDot(path string, root *tree.Node) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dot.Export(f, root)
	return nil
}

func recordHistory(cfg *config.Config, startedAt time.Time, success bool, failureReason string) error {
	store, err := history.Open(cfg.HistoryDB, log.New(os.Stderr, "[history] ", log.LstdFlags))
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Record(history.DecodeRun{
		StartedAt:     startedAt,
		DecoderKind:   cfg.Decoder,
		Success:       success,
		FailureReason: failureReason,
	})
	return err
}

// overlayFlags copies every explicitly-set pflag value onto cfg, leaving
// viper-sourced values (defaults or config file) in place otherwise.
func overlayFlags(cfg *config.Config, fs *pflag.FlagSet, decoderKind string, constraints []int,
	genpolyFlags []string, initThreshold, deltaThreshold, deltaInitThreshold float64, cacheSize uint64,
	metricLimit float64, nodeLimit uint64, giveupThreshold float64, tailZeros bool, edgeBias float64,
	verbosity int, dotPath, historyDB, matrixFile string) error {

	if fs.Changed("decoder") {
		cfg.Decoder = decoderKind
	}
	if fs.Changed("constraint") {
		cfg.Constraints = constraints
	}
	if fs.Changed("genpoly") {
		genpolys, err := parseGenpolyFlags(genpolyFlags, len(cfg.Constraints))
		if err != nil {
			return err
		}
		cfg.Genpolys = genpolys
	}
	if fs.Changed("init-threshold") {
		cfg.InitThreshold = initThreshold
	}
	if fs.Changed("delta-threshold") {
		cfg.DeltaThreshold = deltaThreshold
	}
	if fs.Changed("delta-init-threshold") {
		cfg.DeltaInitThreshold = deltaInitThreshold
	}
	if fs.Changed("cache-size") {
		cfg.CacheSize = cacheSize
	}
	if fs.Changed("metric-limit") {
		cfg.UseMetricLimit = true
		cfg.MetricLimit = metricLimit
	}
	if fs.Changed("node-limit") {
		cfg.UseNodeLimit = true
		cfg.NodeLimit = nodeLimit
	}
	if fs.Changed("giveup-threshold") {
		cfg.UseGiveupThreshold = true
		cfg.GiveupThreshold = giveupThreshold
	}
	if fs.Changed("tail-zeros") {
		cfg.TailZeros = tailZeros
	}
	if fs.Changed("edge-bias") {
		cfg.EdgeBias = edgeBias
	}
	if fs.Changed("verbosity") {
		cfg.Verbosity = verbosity
	}
	if fs.Changed("dot") {
		cfg.DotPath = dotPath
	}
	if fs.Changed("history-db") {
		cfg.HistoryDB = historyDB
	}
	if fs.Changed("matrix") {
		cfg.MatrixFile = matrixFile
	}
	return nil
}

// parseGenpolyFlags turns ["0:7,5", "1:3,1"] into a slice indexed by input,
// of length inputCount.
func parseGenpolyFlags(flags []string, inputCount int) ([][]int64, error) {
	genpolys := make([][]int64, inputCount)
	for _, raw := range flags {
		input, rest, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, fmt.Errorf("--genpoly %q: expected i:o1,o2,... form", raw)
		}
		i, err := strconv.Atoi(input)
		if err != nil || i < 0 || i >= inputCount {
			return nil, fmt.Errorf("--genpoly %q: input index out of range [0,%d)", raw, inputCount)
		}

		fields := strings.Split(rest, ",")
		row := make([]int64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseInt(strings.TrimSpace(f), 0, 64)
			if err != nil {
				return nil, fmt.Errorf("--genpoly %q: %w", raw, err)
			}
			row[j] = v
		}
		genpolys[i] = row
	}
	return genpolys, nil
}

func buildGenpolys(cfg *config.Config) [][]ccencoding.Register {
	genpolys := make([][]ccencoding.Register, len(cfg.Genpolys))
	for i, row := range cfg.Genpolys {
		out := make([]ccencoding.Register, len(row))
		for j, v := range row {
			out[j] = ccencoding.Register(v)
		}
		genpolys[i] = out
	}
	return genpolys
}

func applyLimits(b *sequential.Base, cfg *config.Config) {
	b.TailZeros = cfg.TailZeros
	b.EdgeBias = cfg.EdgeBias
	b.Verbosity = cfg.Verbosity
	if cfg.UseMetricLimit {
		b.SetMetricLimit(cfg.MetricLimit)
	}
	if cfg.UseNodeLimit {
		b.SetNodeLimit(cfg.NodeLimit)
	}
}

func buildDecoder(cfg *config.Config) (decoder, error) {
	genpolys := buildGenpolys(cfg)

	switch cfg.Decoder {
	case "fano":
		d, err := fano.New(cfg.Constraints, genpolys, cfg.InitThreshold, cfg.DeltaThreshold, cfg.CacheSize, cfg.DeltaInitThreshold)
		if err != nil {
			return nil, err
		}
		applyLimits(&d.Base, cfg)
		return d, nil
	case "stack":
		d, err := stack.New(cfg.Constraints, genpolys)
		if err != nil {
			return nil, err
		}
		applyLimits(&d.Base, cfg)
		if cfg.UseGiveupThreshold {
			d.SetGiveupThreshold(cfg.GiveupThreshold)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: --decoder must be \"fano\" or \"stack\", got %q", config.ErrConfiguration, cfg.Decoder)
	}
}

// codeOutputWidth builds a throwaway encoder just to learn n, the code's
// output symbol width, needed before the reliability matrix can be shaped.
func codeOutputWidth(cfg *config.Config) (int, error) {
	enc, err := ccencoding.New(cfg.Constraints, buildGenpolys(cfg))
	if err != nil {
		return 0, err
	}
	return enc.N(), nil
}

// loadMatrix reads a JSON array of columns, each a length-2^n float array,
// and normalizes it into a reliability.Matrix.
func loadMatrix(path string, n int) (*reliability.Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var columns [][]float64
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, fmt.Errorf("ccsoft: malformed reliability matrix %s: %w", path, err)
	}

	m := reliability.New(n, len(columns))
	for t, col := range columns {
		if err := m.EnterColumn(t, col); err != nil {
			return nil, err
		}
	}
	if err := m.Normalize(); err != nil {
		return nil, err
	}
	return m, nil
}
