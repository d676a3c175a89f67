package fan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrOpenFile   = errors.New("fan: open temperature file")
	ErrReadFile   = errors.New("fan: read temperature file")
	ErrTempDecode = errors.New("fan: temperature is not valid text")
	ErrTempParse  = errors.New("fan: temperature is not an integer")
)

// ReadTemperature reads a single integer from path. With millidegrees set
// the value is divided by 1000, as the kernel thermal zones report it.
func ReadTemperature(path string, millidegrees bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrOpenFile, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReadFile, err)
	}
	return ParseTemperature(raw, millidegrees)
}

// ParseTemperature decodes the contents of a temperature file.
func ParseTemperature(raw []byte, millidegrees bool) (int, error) {
	if !utf8.Valid(raw) {
		return 0, ErrTempDecode
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTempParse, err)
	}
	if millidegrees {
		v /= 1000
	}
	return v, nil
}
