package main

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// readWeights parses one float per line. Blank lines and lines starting with
// '#' are skipped.
func readWeights(r io.Reader) ([]float64, error) {
	var w []float64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		w = append(w, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read weights")
	}
	return w, nil
}

func readWeightsFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open weights")
	}
	defer f.Close()
	w, err := readWeights(f)
	if err != nil {
		return nil, errors.Wrapf(err, "weights %s", path)
	}
	return w, nil
}

// writeVector writes one value per line with the shortest exact formatting.
func writeVector(w io.Writer, v []float64) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, x := range v {
		buf = strconv.AppendFloat(buf[:0], x, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return errors.Wrap(err, "write result")
		}
	}
	return errors.Wrap(bw.Flush(), "write result")
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
