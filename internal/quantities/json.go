package quantities

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MarshalJSON encodes d as an SI-prefixed string ("5ms"), matching the
// config-file surface of spec.md §6. Grounded on the teacher's own
// string-based unit suffixes in bitrate.go, generalized to round-trip
// through JSON instead of only being used for CLI display.
func (d TimeSpan) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(formatTimeSpan(d))), nil
}

// UnmarshalJSON parses an SI-prefixed duration string ("5ms", "1.5s",
// "200us", "10ns").
func (d *TimeSpan) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("quantities: TimeSpan: %w", err)
	}
	v, err := parseTimeSpan(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func formatTimeSpan(d TimeSpan) string {
	s := d.Seconds()
	switch {
	case s == 0:
		return "0s"
	case math.Abs(s) < 1e-6:
		return strconv.FormatFloat(s*1e9, 'g', -1, 64) + "ns"
	case math.Abs(s) < 1e-3:
		return strconv.FormatFloat(s*1e6, 'g', -1, 64) + "us"
	case math.Abs(s) < 1:
		return strconv.FormatFloat(s*1e3, 'g', -1, 64) + "ms"
	default:
		return strconv.FormatFloat(s, 'g', -1, 64) + "s"
	}
}

func parseTimeSpan(s string) (TimeSpan, error) {
	num, unit, err := splitUnit(s, []string{"ns", "us", "ms", "s"})
	if err != nil {
		return 0, fmt.Errorf("quantities: parsing duration %q: %w", s, err)
	}
	switch unit {
	case "ns":
		return SecondsSpan(num * 1e-9), nil
	case "us":
		return SecondsSpan(num * 1e-6), nil
	case "ms":
		return SecondsSpan(num * 1e-3), nil
	default: // "s"
		return SecondsSpan(num), nil
	}
}

// MarshalJSON encodes i as a byte-count string ("1400B").
func (i Information) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(fmt.Sprintf("%dB", int64(i)))), nil
}

// UnmarshalJSON parses a byte-count string ("1400B", "1.5KB", "10MB").
func (i *Information) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("quantities: Information: %w", err)
	}
	num, unit, err := splitUnit(s, []string{"GB", "MB", "KB", "B"})
	if err != nil {
		return fmt.Errorf("quantities: parsing byte count %q: %w", s, err)
	}
	var scale float64
	switch unit {
	case "GB":
		scale = float64(Gigabyte)
	case "MB":
		scale = float64(Megabyte)
	case "KB":
		scale = float64(Kilobyte)
	default: // "B"
		scale = float64(Byte)
	}
	*i = Information(num * scale)
	return nil
}

// MarshalJSON encodes r as an SI-prefixed bit-rate string ("10Mbps").
func (r InformationRate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(formatInformationRate(r))), nil
}

// UnmarshalJSON parses an SI-prefixed bit-rate string ("10Mbps", "1.5Gbps",
// "500Kbps", "64bps").
func (r *InformationRate) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("quantities: InformationRate: %w", err)
	}
	num, unit, err := splitUnit(s, []string{"Gbps", "Mbps", "Kbps", "bps"})
	if err != nil {
		return fmt.Errorf("quantities: parsing bit rate %q: %w", s, err)
	}
	var scale float64
	switch unit {
	case "Gbps":
		scale = 1e9
	case "Mbps":
		scale = 1e6
	case "Kbps":
		scale = 1e3
	default: // "bps"
		scale = 1
	}
	*r = InformationRate(num * scale)
	return nil
}

func formatInformationRate(r InformationRate) string {
	bps := r.BitsPerSecond()
	switch {
	case math.Abs(bps) >= 1e9:
		return strconv.FormatFloat(bps/1e9, 'g', -1, 64) + "Gbps"
	case math.Abs(bps) >= 1e6:
		return strconv.FormatFloat(bps/1e6, 'g', -1, 64) + "Mbps"
	case math.Abs(bps) >= 1e3:
		return strconv.FormatFloat(bps/1e3, 'g', -1, 64) + "Kbps"
	default:
		return strconv.FormatFloat(bps, 'g', -1, 64) + "bps"
	}
}

// splitUnit finds the longest matching suffix from units (checked in the
// order given, so callers list longer/more-specific suffixes first) and
// parses the remaining prefix as a float64.
func splitUnit(s string, units []string) (float64, string, error) {
	for _, u := range units {
		if strings.HasSuffix(s, u) {
			numStr := strings.TrimSuffix(s, u)
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, "", err
			}
			return num, u, nil
		}
	}
	return 0, "", fmt.Errorf("no recognized unit suffix in %q", s)
}
