package main

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"runtime/pprof"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lth/bigprod/pkg/bigprod"
)

// benchUnrolls are the factors timed by the bench command. The first one is
// the reference the others are compared against.
var benchUnrolls = []int{1, 2, 4, 8, 16, 32}

// agreementTolerance bounds the relative difference between factors.
const agreementTolerance = 1e-9

type benchConfig struct {
	iterations int
	workers    int
	ram        bool
	seed       uint64
	cpuProfile string
}

type benchResult struct {
	unroll  int
	wall    time.Duration
	cpu     time.Duration
	maxDiff float64
}

func makeBenchCommand(global *globalConfig) *cobra.Command {
	config := benchConfig{iterations: 10, workers: 1, seed: 1}
	cmd := &cobra.Command{
		Use:   "bench <path>",
		Short: "Time every unroll factor on a matrix and check that they agree.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := global.path(args[0])
			if err != nil {
				return err
			}
			return runBench(global.logger, cmd.OutOrStdout(), path, config)
		},
	}
	cmd.Flags().IntVar(&config.iterations, "iterations", config.iterations, "products per unroll factor")
	cmd.Flags().IntVar(&config.workers, "workers", config.workers, "maximum goroutines per product")
	cmd.Flags().BoolVar(&config.ram, "ram", config.ram, "copy the matrix into memory instead of mapping it")
	cmd.Flags().Uint64Var(&config.seed, "seed", config.seed, "seed for the random weight vector")
	cmd.Flags().StringVar(&config.cpuProfile, "cpuprofile", config.cpuProfile, "write a CPU profile to this file")
	return cmd
}

func runBench(log *zap.Logger, stdout io.Writer, path string, config benchConfig) error {
	if config.iterations < 1 {
		return errors.Newf("--iterations must be positive, got %d", config.iterations)
	}

	m, err := bigprod.Open(path,
		bigprod.WithWorkers(config.workers),
		bigprod.WithLoadIntoRAM(config.ram),
		bigprod.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	rng := rand.New(rand.NewPCG(config.seed, config.seed+1))
	w := make([]float64, m.Cols())
	for j := range w {
		w[j] = rng.Float64()*2 - 1
	}

	if config.cpuProfile != "" {
		stop, err := startCPUProfile(config.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	var reference []float64
	results := make([]benchResult, 0, len(benchUnrolls))
	for _, unroll := range benchUnrolls {
		// Warm the page cache and keep the result for the agreement check.
		got, err := m.MultiplyUnroll(unroll, w)
		if err != nil {
			return errors.Wrapf(err, "unroll %d", unroll)
		}
		if reference == nil {
			reference = got
		}

		startCPU := cpuTimeNow()
		start := time.Now()
		for i := 0; i < config.iterations; i++ {
			if _, err := m.MultiplyUnroll(unroll, w); err != nil {
				return errors.Wrapf(err, "unroll %d", unroll)
			}
		}
		r := benchResult{
			unroll:  unroll,
			wall:    time.Since(start) / time.Duration(config.iterations),
			cpu:     (cpuTimeNow() - startCPU) / time.Duration(config.iterations),
			maxDiff: maxRelativeDiff(reference, got),
		}
		log.Debug("timed unroll factor", zap.Int("unroll", unroll), zap.Duration("wall", r.wall))
		results = append(results, r)
	}

	elements := float64(m.Rows()) * float64(m.Cols())
	if err := printBench(stdout, m, elements, results); err != nil {
		return err
	}
	for _, r := range results {
		if r.maxDiff > agreementTolerance {
			return errors.Newf("unroll %d disagrees with unroll %d: relative difference %g",
				r.unroll, benchUnrolls[0], r.maxDiff)
		}
	}
	return nil
}

func printBench(w io.Writer, m *bigprod.Matrix, elements float64, results []benchResult) error {
	fmt.Fprintf(w, "Matrix: %d x %d %s (mapped=%t)\n\n", m.Rows(), m.Cols(), m.DType(), m.Mapped())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "unroll\twall/op\tcpu/op\tthroughput\tmax rel diff\t")
	for _, r := range results {
		rate := 0.0
		if r.wall > 0 {
			rate = elements / r.wall.Seconds()
		}
		fmt.Fprintf(tw, "%d\t%v\t%v\t%s\t%.2e\t\n",
			r.unroll, r.wall, r.cpu, humanize.SIWithDigits(rate, 2, "elem/s"), r.maxDiff)
	}
	return tw.Flush()
}

// maxRelativeDiff returns max_i |a[i]-b[i]| / max(1, |a[i]|, |b[i]|).
func maxRelativeDiff(a, b []float64) float64 {
	var worst float64
	for i := range a {
		scale := math.Max(1, math.Max(math.Abs(a[i]), math.Abs(b[i])))
		worst = math.Max(worst, math.Abs(a[i]-b[i])/scale)
	}
	return worst
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create CPU profile")
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "start CPU profile")
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
