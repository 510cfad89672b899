package main

import (
	"math/rand/v2"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lth/bigprod/internal/bigmat"
)

type createConfig struct {
	rows  int
	cols  int
	dtype bigmat.DType
	seed  uint64
}

// dtypeValue adapts bigmat.DType to a flag.
type dtypeValue struct {
	dtype *bigmat.DType
}

var _ pflag.Value = dtypeValue{}

func (v dtypeValue) String() string {
	if v.dtype == nil {
		return ""
	}
	return strings.ToLower(v.dtype.String())
}

func (v dtypeValue) Set(s string) error {
	d, err := bigmat.ParseDType(s)
	if err != nil {
		return err
	}
	*v.dtype = d
	return nil
}

func (v dtypeValue) Type() string { return "dtype" }

func makeCreateCommand(global *globalConfig) *cobra.Command {
	config := createConfig{rows: 1000, cols: 100, dtype: bigmat.DTypeF64, seed: 1}
	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a matrix filled with deterministic pseudo-random values.",
		Long: `Create a matrix filled with deterministic pseudo-random values. The same
seed, shape and dtype always produce the same file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := global.path(args[0])
			if err != nil {
				return err
			}
			return runCreate(global.logger, path, config)
		},
	}
	cmd.Flags().IntVar(&config.rows, "rows", config.rows, "number of rows")
	cmd.Flags().IntVar(&config.cols, "cols", config.cols, "number of columns")
	cmd.Flags().Var(dtypeValue{&config.dtype}, "dtype", "element type: i8, u8, i16, i32, f16, f32 or f64")
	cmd.Flags().Uint64Var(&config.seed, "seed", config.seed, "random seed")
	return cmd
}

func runCreate(log *zap.Logger, path string, config createConfig) error {
	dtype := config.dtype
	w, err := bigmat.Create(path, dtype, config.rows, config.cols)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	rng := rand.New(rand.NewPCG(config.seed, config.seed^0x9e3779b97f4a7c15))
	column := make([]float64, config.rows)
	for j := 0; j < config.cols; j++ {
		for i := range column {
			column[i] = randomValue(rng, dtype)
		}
		if err := w.SetColumn(j, column); err != nil {
			w.Close()
			return errors.Wrapf(err, "fill column %d", j)
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}

	log.Info("created matrix",
		zap.String("path", path),
		zap.Stringer("dtype", dtype),
		zap.Int("rows", config.rows),
		zap.Int("cols", config.cols),
	)
	return nil
}

// randomValue draws an integer within the type's range, or a standard normal
// value for float types.
func randomValue(rng *rand.Rand, dtype bigmat.DType) float64 {
	switch dtype {
	case bigmat.DTypeI8:
		return float64(rng.IntN(256) - 128)
	case bigmat.DTypeU8:
		return float64(rng.IntN(256))
	case bigmat.DTypeI16:
		return float64(rng.IntN(2001) - 1000)
	case bigmat.DTypeI32:
		return float64(rng.IntN(2_000_001) - 1_000_000)
	default:
		return rng.NormFloat64()
	}
}
