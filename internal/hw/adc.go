package hw

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIOSampler reads the supply voltage from a Linux IIO ADC channel in
// sysfs (e.g. /sys/bus/iio/devices/iio:device0). Per the IIO
// convention for voltage channels, millivolts = raw * scale.
type IIOSampler struct {
	rawPath string
	scale   float64
}

// NewIIOSampler opens the given IIO device directory and channel.
// If scale <= 0, the channel's scale file is read instead. The raw
// channel is read once to verify it is usable.
func NewIIOSampler(dir string, channel int, scale float64) (*IIOSampler, error) {
	if scale <= 0 {
		var err error
		scale, err = readScale(dir, channel)
		if err != nil {
			return nil, err
		}
	}
	if scale <= 0 {
		return nil, fmt.Errorf("adc scale must be positive, got %v", scale)
	}

	s := &IIOSampler{
		rawPath: filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", channel)),
		scale:   scale,
	}
	if _, err := s.ReadMillivolts(); err != nil {
		return nil, fmt.Errorf("probe adc channel: %w", err)
	}
	return s, nil
}

func readScale(dir string, channel int) (float64, error) {
	// Per-channel scale first, then the device-wide one.
	paths := []string{
		filepath.Join(dir, fmt.Sprintf("in_voltage%d_scale", channel)),
		filepath.Join(dir, "in_voltage_scale"),
	}
	var lastErr error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		scale, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			return 0, fmt.Errorf("parse adc scale %s: %w", p, err)
		}
		return scale, nil
	}
	return 0, fmt.Errorf("read adc scale: %w", lastErr)
}

// ReadMillivolts reads and converts one raw ADC sample.
func (s *IIOSampler) ReadMillivolts() (int, error) {
	data, err := os.ReadFile(s.rawPath)
	if err != nil {
		return 0, fmt.Errorf("read adc raw value: %w", err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc raw value %q: %w", strings.TrimSpace(string(data)), err)
	}
	return int(float64(raw)*s.scale + 0.5), nil
}

// Close releases sampler resources. Sysfs reads hold nothing open
// between samples.
func (s *IIOSampler) Close() error { return nil }
