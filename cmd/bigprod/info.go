package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lth/bigprod/internal/bigmat"
	"github.com/lth/bigprod/internal/kernels"
)

func makeInfoCommand(global *globalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Print the header and size of a matrix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := global.path(args[0])
			if err != nil {
				return err
			}
			f, err := bigmat.Open(path)
			if err != nil {
				return errors.Wrapf(err, "open %s", path)
			}
			defer f.Close()
			printInfo(cmd.OutOrStdout(), f)
			return nil
		},
	}
}

func printInfo(w io.Writer, f *bigmat.File) {
	h := f.Header()
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "Matrix File: %s\n", f.Path())
	fmt.Fprintf(w, "Version: %d\n", h.Version)
	fmt.Fprintf(w, "DType: %s (%d bytes)\n", h.DType, h.DType.Size())
	p.Fprintf(w, "Rows: %d\n", h.Rows)
	p.Fprintf(w, "Cols: %d\n", h.Cols)
	p.Fprintf(w, "Elements: %d\n", int64(h.Rows)*int64(h.Cols))
	fmt.Fprintf(w, "Column Size: %s\n", humanize.IBytes(uint64(h.ColumnSize())))
	fmt.Fprintf(w, "Payload Size: %s\n", humanize.IBytes(uint64(h.PayloadSize())))
	fmt.Fprintf(w, "Default Unroll: %d (host %d)\n", kernels.DefaultConfig.Unroll, kernels.DefaultUnroll())
}
