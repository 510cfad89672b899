package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// run executes the command line and returns what it printed to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := makeBigprodCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCreateInfoProd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.bmat")

	_, err := run(t, "create", path, "--rows", "5", "--cols", "11", "--dtype", "i8", "--seed", "7")
	require.NoError(t, err)

	out, err := run(t, "info", path)
	require.NoError(t, err)
	require.Contains(t, out, "DType: I8 (1 bytes)")
	require.Contains(t, out, "Rows: 5\n")
	require.Contains(t, out, "Cols: 11\n")
	require.Contains(t, out, "Payload Size: 55 B")

	var results []string
	for _, unroll := range []string{"1", "2", "8", "16"} {
		out, err := run(t, "prod", path, "--ones", "--unroll", unroll)
		require.NoError(t, err)
		results = append(results, out)
	}
	require.Len(t, strings.Split(strings.TrimSpace(results[0]), "\n"), 5)
	for _, r := range results[1:] {
		// Integer data sums exactly, so every factor prints the same text.
		require.Equal(t, results[0], r)
	}
}

func TestCreateIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bmat")
	b := filepath.Join(dir, "b.bmat")
	for _, p := range []string{a, b} {
		_, err := run(t, "create", p, "--rows", "64", "--cols", "9", "--dtype", "f32", "--seed", "42")
		require.NoError(t, err)
	}
	rawA, err := os.ReadFile(a)
	require.NoError(t, err)
	rawB, err := os.ReadFile(b)
	require.NoError(t, err)
	require.Equal(t, rawA, rawB)

	_, err = run(t, "create", filepath.Join(dir, "c.bmat"), "--dtype", "bf16")
	require.ErrorContains(t, err, "unknown dtype")
}

func TestProdWeightsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.bmat")
	_, err := run(t, "create", path, "--rows", "3", "--cols", "3", "--dtype", "i16")
	require.NoError(t, err)

	weights := filepath.Join(dir, "w.txt")
	require.NoError(t, os.WriteFile(weights, []byte("# weights\n0\n\n0\n0\n"), 0o644))
	outPath := filepath.Join(dir, "out.txt")
	metricsPath := filepath.Join(dir, "bigprod.prom")

	_, err = run(t, "prod", path, "--weights", weights, "--out", outPath, "--ram", "--metrics-file", metricsPath)
	require.NoError(t, err)
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "0\n0\n0\n", string(out))

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(prom), `bigprod_products_total{dtype="I16",outcome="ok",unroll="8"} 1`)

	require.NoError(t, os.WriteFile(weights, []byte("1\n2\n"), 0o644))
	_, err = run(t, "prod", path, "--weights", weights)
	require.ErrorContains(t, err, "invalid argument")

	_, err = run(t, "prod", path)
	require.Error(t, err)
}

func TestBench(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.bmat")
	_, err := run(t, "create", path, "--rows", "40", "--cols", "37", "--dtype", "f64")
	require.NoError(t, err)

	out, err := run(t, "bench", path, "--iterations", "2")
	require.NoError(t, err)
	require.Contains(t, out, "Matrix: 40 x 37 F64")
	require.Equal(t, len(benchUnrolls), strings.Count(out, "elem/s"))

	_, err = run(t, "bench", path, "--iterations", "0")
	require.Error(t, err)
}

func TestReadWeights(t *testing.T) {
	w, err := readWeights(strings.NewReader(" 1.5\n# c\n\n-2\n1e3\n"))
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, -2, 1000}, w)

	_, err = readWeights(strings.NewReader("1\nx\n"))
	require.ErrorContains(t, err, "line 2")
}

func TestMaxRelativeDiff(t *testing.T) {
	require.Zero(t, maxRelativeDiff([]float64{1, 2}, []float64{1, 2}))
	require.InDelta(t, 0.5, maxRelativeDiff([]float64{0}, []float64{0.5}), 1e-15)
	require.InDelta(t, 0.01, maxRelativeDiff([]float64{100}, []float64{101}), 1e-3)
}
