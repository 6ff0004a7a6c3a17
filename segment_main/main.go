package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sbinet/npyio"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/tarstars/smart_segment/segment"
)

//RunConfig mirrors the JSON run configuration accepted by the optimize command.
//Flags set on the command line take precedence over the file.
type RunConfig struct {
	FileNamePropensities string  `json:"filename_propensities"`
	FileNamePredictions  string  `json:"filename_predictions"`
	NBins                int     `json:"n_bins"`
	Sweep                bool    `json:"sweep"`
	GlobalSearch         bool    `json:"global_search"`
	PenaltyFactor        float64 `json:"penalty_factor"`
	MinSamples           int     `json:"min_samples"`
	Seed                 uint64  `json:"seed"`
	FileNameCutoffs      string  `json:"filename_cutoffs"`
	FileNameResult       string  `json:"filename_result"`
}

//RunResult is the JSON record written after a successful run.
type RunResult struct {
	NBins   int                  `json:"n_bins"`
	Cutoffs []float64            `json:"cutoffs"`
	Revenue float64              `json:"revenue"`
	Bins    []segment.BinSummary `json:"bins"`
}

func decodeConfig(srcConfig string, out *RunConfig) error {
	file, err := os.Open(srcConfig)
	if err != nil {
		return errors.Wrapf(err, "open config %s", srcConfig)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	return errors.Wrapf(decoder.Decode(out), "decode config %s", srcConfig)
}

//readNpyVector reads a .npy file holding a rank-1 (or single-column) array and
//flattens it into a slice.
func readNpyVector(fileName string) ([]float64, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fileName)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read npy header of %s", fileName)
	}

	var dense mat.Dense
	if err := r.Read(&dense); err != nil {
		return nil, errors.Wrapf(err, "read npy payload of %s", fileName)
	}

	h, w := dense.Dims()
	values := make([]float64, 0, h*w)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			values = append(values, dense.At(p, q))
		}
	}
	return values, nil
}

func writeNpyVector(fileName string, values []float64) error {
	dst, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create %s", fileName)
	}
	defer dst.Close()
	return errors.Wrapf(npyio.Write(dst, values), "write %s", fileName)
}

func writeResult(fileName string, result RunResult) error {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal result")
	}
	return errors.Wrapf(os.WriteFile(fileName, payload, 0o644), "write %s", fileName)
}

func runOptimize(config RunConfig) error {
	propensities, err := readNpyVector(config.FileNamePropensities)
	if err != nil {
		return err
	}
	predictions, err := readNpyVector(config.FileNamePredictions)
	if err != nil {
		return err
	}
	if len(propensities) != len(predictions) {
		return errors.Errorf("propensities and predictions differ in length: %d vs %d", len(propensities), len(predictions))
	}

	strategy := segment.SearchQuantile
	if config.GlobalSearch {
		strategy = segment.SearchGlobal
	}

	log.Info().
		Int("observations", len(propensities)).
		Int("n_bins", config.NBins).
		Bool("sweep", config.Sweep).
		Bool("global_search", config.GlobalSearch).
		Msg("searching for optimal cutoffs")

	result, err := segment.FindOptimalBins(segment.SearchParams{
		Propensities:  propensities,
		Predictions:   predictions,
		NBins:         config.NBins,
		PenaltyFactor: config.PenaltyFactor,
		MinSamples:    config.MinSamples,
		Strategy:      strategy,
		Sweep:         config.Sweep,
		Seed:          config.Seed,
	})
	if err != nil {
		return err
	}

	if result.NBins == 0 {
		log.Warn().Msg("no solution: insufficient data for requested granularity")
	}

	bins := segment.SummarizeBins(result.Cutoffs, propensities, predictions)
	for _, bin := range bins {
		log.Info().
			Int("bin", bin.Index).
			Float64("lo", bin.Lo).
			Float64("hi", bin.Hi).
			Int("size", bin.Size).
			Float64("conversion_rate", bin.ConversionRate).
			Msg("bin")
	}
	log.Info().Int("n_bins", result.NBins).Float64("revenue", result.Revenue).Msg("done")

	if config.FileNameCutoffs != "" {
		if err := writeNpyVector(config.FileNameCutoffs, result.Cutoffs); err != nil {
			return err
		}
	}
	if config.FileNameResult != "" {
		if err := writeResult(config.FileNameResult, RunResult{
			NBins:   result.NBins,
			Cutoffs: result.Cutoffs,
			Revenue: result.Revenue,
			Bins:    bins,
		}); err != nil {
			return err
		}
	}
	return nil
}

var (
	verbose    bool
	configPath string
	config     RunConfig
)

var rootCmd = &cobra.Command{
	Use:   "smart_segment",
	Short: "Revenue-optimal segmentation of propensity scores",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

		if configPath != "" {
			fileConfig := RunConfig{}
			if err := decodeConfig(configPath, &fileConfig); err != nil {
				return err
			}
			applyConfigDefaults(cmd, &fileConfig)
		}
		return nil
	},
}

//applyConfigDefaults fills fields from the config file unless the matching
//flag was set explicitly on the command line.
func applyConfigDefaults(cmd *cobra.Command, fileConfig *RunConfig) {
	flags := cmd.Flags()
	if fileConfig.FileNamePropensities != "" && !flags.Changed("propensities") {
		config.FileNamePropensities = fileConfig.FileNamePropensities
	}
	if fileConfig.FileNamePredictions != "" && !flags.Changed("predictions") {
		config.FileNamePredictions = fileConfig.FileNamePredictions
	}
	if fileConfig.NBins != 0 && !flags.Changed("bins") {
		config.NBins = fileConfig.NBins
	}
	if !flags.Changed("sweep") {
		config.Sweep = fileConfig.Sweep
	}
	if !flags.Changed("global") {
		config.GlobalSearch = fileConfig.GlobalSearch
	}
	if !flags.Changed("penalty") {
		config.PenaltyFactor = fileConfig.PenaltyFactor
	}
	if fileConfig.MinSamples != 0 && !flags.Changed("min-samples") {
		config.MinSamples = fileConfig.MinSamples
	}
	if fileConfig.Seed != 0 && !flags.Changed("seed") {
		config.Seed = fileConfig.Seed
	}
	if fileConfig.FileNameCutoffs != "" && !flags.Changed("out-cutoffs") {
		config.FileNameCutoffs = fileConfig.FileNameCutoffs
	}
	if fileConfig.FileNameResult != "" && !flags.Changed("out-result") {
		config.FileNameResult = fileConfig.FileNameResult
	}
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search for revenue-maximizing propensity cutoffs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.FileNamePropensities == "" || config.FileNamePredictions == "" {
			return errors.New("propensities and predictions files are required")
		}
		return runOptimize(config)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON run configuration file")

	flags := optimizeCmd.Flags()
	flags.StringVar(&config.FileNamePropensities, "propensities", "", "npy file with propensity scores")
	flags.StringVar(&config.FileNamePredictions, "predictions", "", "npy file with predicted outcomes")
	flags.IntVar(&config.NBins, "bins", 10, "bin count (sweep upper limit with --sweep)")
	flags.BoolVar(&config.Sweep, "sweep", false, "sweep bin counts from 2 up to --bins")
	flags.BoolVar(&config.GlobalSearch, "global", false, "use the global population-based search")
	flags.Float64Var(&config.PenaltyFactor, "penalty", 0, "penalty factor for similar adjacent conversion rates")
	flags.IntVar(&config.MinSamples, "min-samples", 10, "minimum samples per bin")
	flags.Uint64Var(&config.Seed, "seed", 0, "random seed of the global search (0 selects the built-in default)")
	flags.StringVar(&config.FileNameCutoffs, "out-cutoffs", "", "npy file to write the final cutoffs to")
	flags.StringVar(&config.FileNameResult, "out-result", "", "JSON file to write the run result to")

	rootCmd.AddCommand(optimizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}
