package quantities

import (
	"encoding/json"
	"testing"
)

func TestTimeSpanJSONRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		d    TimeSpan
	}{
		{"zero", SecondsSpan(0)},
		{"nanoseconds", SecondsSpan(5e-9)},
		{"microseconds", SecondsSpan(200e-6)},
		{"milliseconds", MillisecondsSpan(20)},
		{"seconds", SecondsSpan(1.5)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, err := json.Marshal(c.d)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got TimeSpan
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal(%s): %v", data, err)
			}
			if diff := got.Seconds() - c.d.Seconds(); diff > 1e-12 || diff < -1e-12 {
				t.Errorf("round trip %s: got %v, want %v", data, got, c.d)
			}
		})
	}
}

func TestTimeSpanUnmarshalExplicit(t *testing.T) {
	cases := []struct {
		in   string
		want float64 // seconds
	}{
		{`"10ns"`, 10e-9},
		{`"1.5us"`, 1.5e-6},
		{`"20ms"`, 20e-3},
		{`"2s"`, 2},
	}
	for _, c := range cases {
		var d TimeSpan
		if err := json.Unmarshal([]byte(c.in), &d); err != nil {
			t.Fatalf("Unmarshal(%s): %v", c.in, err)
		}
		if d.Seconds() != c.want {
			t.Errorf("Unmarshal(%s) = %v seconds, want %v", c.in, d.Seconds(), c.want)
		}
	}
}

func TestInformationJSONRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want Information
	}{
		{`"1400B"`, 1400},
		{`"1.5KB"`, Information(1.5 * float64(Kilobyte))},
		{`"10MB"`, 10 * Megabyte},
		{`"1GB"`, Gigabyte},
	}
	for _, c := range cases {
		var i Information
		if err := json.Unmarshal([]byte(c.in), &i); err != nil {
			t.Fatalf("Unmarshal(%s): %v", c.in, err)
		}
		if i != c.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", c.in, i, c.want)
		}
		data, err := json.Marshal(i)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var roundTripped Information
		if err := json.Unmarshal(data, &roundTripped); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if roundTripped != i {
			t.Errorf("round trip %s: got %v, want %v", data, roundTripped, i)
		}
	}
}

func TestInformationRateJSONRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want float64 // bits per second
	}{
		{`"64bps"`, 64},
		{`"500Kbps"`, 500e3},
		{`"10Mbps"`, 10e6},
		{`"1.5Gbps"`, 1.5e9},
	}
	for _, c := range cases {
		var r InformationRate
		if err := json.Unmarshal([]byte(c.in), &r); err != nil {
			t.Fatalf("Unmarshal(%s): %v", c.in, err)
		}
		if r.BitsPerSecond() != c.want {
			t.Errorf("Unmarshal(%s) = %v bps, want %v", c.in, r.BitsPerSecond(), c.want)
		}
	}
}

func TestUnmarshalRejectsUnknownUnit(t *testing.T) {
	var d TimeSpan
	if err := json.Unmarshal([]byte(`"5parsecs"`), &d); err == nil {
		t.Error("expected error for unrecognized time unit")
	}
	var i Information
	if err := json.Unmarshal([]byte(`"5TB"`), &i); err == nil {
		t.Error("expected error for unrecognized byte unit")
	}
	var r InformationRate
	if err := json.Unmarshal([]byte(`"5Tbps"`), &r); err == nil {
		t.Error("expected error for unrecognized bit-rate unit")
	}
}
