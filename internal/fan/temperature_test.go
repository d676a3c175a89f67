package fan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestReadTemperature(t *testing.T) {
	v, err := ReadTemperature(writeTemp(t, []byte("57\n")), false)
	require.NoError(t, err)
	assert.Equal(t, 57, v)
}

func TestReadTemperatureMillidegrees(t *testing.T) {
	v, err := ReadTemperature(writeTemp(t, []byte("48312\n")), true)
	require.NoError(t, err)
	assert.Equal(t, 48, v)
}

func TestReadTemperatureErrors(t *testing.T) {
	_, err := ReadTemperature(filepath.Join(t.TempDir(), "missing"), false)
	assert.ErrorIs(t, err, ErrOpenFile)

	_, err = ReadTemperature(t.TempDir(), false)
	assert.ErrorIs(t, err, ErrReadFile)

	_, err = ReadTemperature(writeTemp(t, []byte{0xff, 0xfe}), false)
	assert.ErrorIs(t, err, ErrTempDecode)

	_, err = ReadTemperature(writeTemp(t, []byte("warm")), false)
	assert.ErrorIs(t, err, ErrTempParse)
}
