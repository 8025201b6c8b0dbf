package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addWasm exports add(f64, f64) -> f64.
var addWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7c, 0x7c, 0x01, 0x7c,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0xa0, 0x0b,
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs(" 1, 2.5 ,-3")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, args)

	args, err = parseArgs("")
	require.NoError(t, err)
	assert.Nil(t, args)

	_, err = parseArgs("1,x")
	assert.ErrorContains(t, err, "argument 2")
}

func TestSessionCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.wasm")
	require.NoError(t, os.WriteFile(path, addWasm, 0o600))

	ctx := context.Background()
	s, err := openSession(ctx, options{wasmFile: path, name: "m"})
	require.NoError(t, err)
	defer s.Close(ctx)

	results, err := s.call("add", []float64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, results)
	assert.Equal(t, 0, s.L.Top())

	_, err = s.call("missing", nil)
	assert.ErrorContains(t, err, "no export named")

	_, err = s.call("add", []float64{1})
	assert.ErrorContains(t, err, "bad argument #2 to 'm.add'")
}
