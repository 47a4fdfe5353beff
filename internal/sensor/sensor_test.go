package sensor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHwmonReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp1_input")
	require.NoError(t, os.WriteFile(path, []byte("21500\n"), 0o644))

	r, err := NewHwmonReader(path)
	require.NoError(t, err)

	v, err := r.ReadCelsius()
	require.NoError(t, err)
	assert.InDelta(t, 21.5, v, 1e-9)

	require.NoError(t, os.WriteFile(path, []byte("-4250\n"), 0o644))
	v, err = r.ReadCelsius()
	require.NoError(t, err)
	assert.InDelta(t, -4.25, v, 1e-9)
}

func TestHwmonReaderMissing(t *testing.T) {
	_, err := NewHwmonReader(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestHwmonReaderGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp1_input")
	require.NoError(t, os.WriteFile(path, []byte("n/a\n"), 0o644))

	r, err := NewHwmonReader(path)
	require.NoError(t, err)
	_, err = r.ReadCelsius()
	assert.Error(t, err)
}

func TestHwmonReaderRemovedAfterOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp1_input")
	require.NoError(t, os.WriteFile(path, []byte("20000"), 0o644))
	r, err := NewHwmonReader(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = r.ReadCelsius()
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFakeReader(t *testing.T) {
	fail := errors.New("i2c nack")
	f := NewFakeReader(Sample{Celsius: 20}, Sample{Err: fail}, Sample{Celsius: 21})

	v, err := f.ReadCelsius()
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)

	_, err = f.ReadCelsius()
	assert.ErrorIs(t, err, fail)

	v, _ = f.ReadCelsius()
	assert.Equal(t, 21.0, v)

	// Last sample repeats.
	v, _ = f.ReadCelsius()
	assert.Equal(t, 21.0, v)
	assert.Equal(t, 4, f.Reads)
}

func TestFakeReaderNoSamples(t *testing.T) {
	_, err := NewFakeReader().ReadCelsius()
	assert.ErrorIs(t, err, ErrNoSamples)
}
