package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lth/bigprod/internal/metrics"
	"github.com/lth/bigprod/pkg/bigprod"
)

type prodConfig struct {
	weights     string
	ones        bool
	unroll      int
	workers     int
	ram         bool
	out         string
	metricsFile string
}

func makeProdCommand(global *globalConfig) *cobra.Command {
	config := prodConfig{unroll: 8, workers: 1}
	cmd := &cobra.Command{
		Use:   "prod <path>",
		Short: "Multiply a matrix by a weight vector and print the result.",
		Long: `Multiply a matrix by a weight vector and print the result, one value per
line. The weights are read from --weights (one value per line) or set to
all ones with --ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := global.path(args[0])
			if err != nil {
				return err
			}
			return runProd(global.logger, cmd.OutOrStdout(), path, config)
		},
	}
	cmd.Flags().StringVar(&config.weights, "weights", config.weights, "file holding one weight per line")
	cmd.Flags().BoolVar(&config.ones, "ones", config.ones, "use a weight of one for every column")
	cmd.Flags().IntVar(&config.unroll, "unroll", config.unroll, "columns per block: 1, 2, 4, 8, 16, 32, or 0 for the host default")
	cmd.Flags().IntVar(&config.workers, "workers", config.workers, "maximum goroutines for the product")
	cmd.Flags().BoolVar(&config.ram, "ram", config.ram, "copy the matrix into memory instead of mapping it")
	cmd.Flags().StringVarP(&config.out, "out", "o", config.out, "write the result to this file instead of stdout")
	cmd.Flags().StringVar(&config.metricsFile, "metrics-file", config.metricsFile, "write Prometheus metrics to this file")
	cmd.MarkFlagsMutuallyExclusive("weights", "ones")
	cmd.MarkFlagsOneRequired("weights", "ones")
	return cmd
}

func runProd(log *zap.Logger, stdout io.Writer, path string, config prodConfig) (retErr error) {
	var rec *metrics.Recorder
	if config.metricsFile != "" {
		rec = metrics.NewRecorder()
		defer func() {
			retErr = errors.CombineErrors(retErr, rec.WriteTextfile(config.metricsFile))
		}()
	}

	m, err := bigprod.Open(path,
		bigprod.WithUnroll(config.unroll),
		bigprod.WithWorkers(config.workers),
		bigprod.WithLoadIntoRAM(config.ram),
		bigprod.WithLogger(log),
		bigprod.WithMetrics(rec),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	var w []float64
	if config.ones {
		w = ones(m.Cols())
	} else if w, err = readWeightsFile(config.weights); err != nil {
		return err
	}

	result, err := m.Multiply(w)
	if err != nil {
		return errors.Wrapf(err, "multiply %s", path)
	}

	if config.out == "" {
		return writeVector(stdout, result)
	}
	f, err := os.Create(config.out)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := writeVector(f, result); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	log.Info("wrote result", zap.String("out", config.out), zap.Int("rows", len(result)))
	return nil
}
