// Command bigprod creates, inspects and multiplies matrices stored in files or
// shared-memory segments.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lth/bigprod/internal/bigmat"
)

func main() {
	if err := makeBigprodCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalConfig holds the persistent flags and the logger built from them.
type globalConfig struct {
	verbose bool
	shared  bool
	logger  *zap.Logger
}

// path resolves a command argument to a file path, treating it as a segment
// name under the shared-memory directory when --shared is set.
func (g *globalConfig) path(arg string) (string, error) {
	if !g.shared {
		return arg, nil
	}
	return bigmat.SharedPath(arg)
}

func makeBigprodCommand() *cobra.Command {
	global := &globalConfig{logger: zap.NewNop()}
	command := &cobra.Command{
		Use:   "bigprod [command] (flags)",
		Short: "bigprod multiplies large stored matrices by a vector.",
		Long: `bigprod multiplies large column-major matrices by a dense vector. Matrices
live in files or named shared-memory segments and are read through a memory
mapping, one column at a time.

Typical usage:
    bigprod create m.bmat --rows 100000 --cols 300 --dtype i8
    bigprod info m.bmat
    bigprod prod m.bmat --ones --unroll 16 --workers 8 --out result.txt
    bigprod bench m.bmat --iterations 20
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			global.logger = newLogger(global.verbose, cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = global.logger.Sync()
		},
	}
	command.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "log debug output")
	command.PersistentFlags().BoolVar(&global.shared, "shared", false, "treat the matrix argument as a shared-memory segment name")

	command.AddCommand(makeCreateCommand(global))
	command.AddCommand(makeInfoCommand(global))
	command.AddCommand(makeProdCommand(global))
	command.AddCommand(makeBenchCommand(global))
	return command
}

// newLogger writes human-readable log lines to w: info and above normally,
// everything in development format with --verbose.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zapcore.InfoLevel
	if verbose {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core)
}
