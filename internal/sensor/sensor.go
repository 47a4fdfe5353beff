// Package sensor reads the node thermometer.
// The real implementation reads a Linux hwmon attribute, which is how the
// kernel tmp102 driver exposes a TMP112 on I2C. The fake implementation
// allows testing without hardware.
package sensor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the hwmon attribute of the first thermometer.
const DefaultPath = "/sys/class/hwmon/hwmon0/temp1_input"

// Reader reads a temperature.
type Reader interface {
	// ReadCelsius returns the current temperature in degrees Celsius.
	ReadCelsius() (float64, error)
}

// ErrNoSamples is returned by a FakeReader with nothing scripted.
var ErrNoSamples = errors.New("no samples configured")

// HwmonReader reads a hwmon temperature attribute (millidegrees Celsius).
type HwmonReader struct {
	path string
}

// NewHwmonReader creates a reader for the attribute at path. The path is
// checked once so a missing sensor fails at startup.
func NewHwmonReader(path string) (*HwmonReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open thermometer: %w", err)
	}
	return &HwmonReader{path: path}, nil
}

// ReadCelsius reads and converts the attribute.
func (r *HwmonReader) ReadCelsius() (float64, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, fmt.Errorf("read thermometer: %w", err)
	}
	return parseMillidegrees(string(data))
}

func parseMillidegrees(s string) (float64, error) {
	milli, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse thermometer value %q: %w", strings.TrimSpace(s), err)
	}
	return float64(milli) / 1000, nil
}
