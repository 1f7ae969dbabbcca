package quantities

import "fmt"

// Information is a quantity of data, counted in integer bytes. Packets on
// the simulated wire are a fixed quantum of Information (see PacketSize).
type Information int64

// Byte-count constants, matching the teacher's Bytes type (bytes.go) but
// scoped to this package's Information type.
const (
	Byte     Information = 1
	Kilobyte             = 1000 * Byte
	Megabyte             = 1000 * Kilobyte
	Gigabyte             = 1000 * Megabyte
)

// PacketSize is the fixed size of every simulated packet (§3 Packet).
const PacketSize Information = 1400 * Byte

// Bytes returns i as a plain int64 byte count.
func (i Information) Bytes() int64 { return int64(i) }

// Add returns the sum of two Information quantities.
func (i Information) Add(other Information) Information { return i + other }

// Sub returns the difference of two Information quantities.
func (i Information) Sub(other Information) Information { return i - other }

func (i Information) String() string { return fmt.Sprintf("%dB", int64(i)) }

// InformationRate is a floating-point bits-per-second quantity.
type InformationRate float64

// BitsPerSecond returns r as a plain float64 bits/second value.
func (r InformationRate) BitsPerSecond() float64 { return float64(r) }

func (r InformationRate) String() string { return fmt.Sprintf("%.3fbps", float64(r)) }

// DivTimeSpan divides an Information by a TimeSpan to produce the average
// InformationRate that transferred it (§3: Information / TimeSpan =
// InformationRate).
func (i Information) DivTimeSpan(d TimeSpan) InformationRate {
	if d <= 0 {
		return 0
	}
	return InformationRate(float64(i) * 8 / float64(d))
}

// DivRate divides an Information by an InformationRate to produce the
// TimeSpan required to transfer it at that rate (§3: Information /
// InformationRate = TimeSpan).
func (i Information) DivRate(r InformationRate) TimeSpan {
	if r <= 0 {
		return TimeSpan(PositiveInfinity)
	}
	return TimeSpan(float64(i) * 8 / float64(r))
}

// Mul scales an InformationRate by a dimensionless factor.
func (r InformationRate) Mul(f float64) InformationRate { return InformationRate(float64(r) * f) }
