package average

import "testing"

func TestMean(t *testing.T) {
	var m Mean
	if _, err := m.Value(); err != NoItems {
		t.Errorf("Value() on empty Mean = %v, want NoItems", err)
	}
	m.Record(1)
	m.Record(2)
	m.Record(3)
	got, err := m.Value()
	if err != nil {
		t.Fatalf("Value(): %v", err)
	}
	if got != 2 {
		t.Errorf("Value() = %v, want 2", got)
	}
	if m.Count() != 3 {
		t.Errorf("Count() = %d, want 3", m.Count())
	}
}

func TestEWMASeedsOnFirstUpdate(t *testing.T) {
	e := NewEWMA(0.25)
	if got := e.Update(10); got != 10 {
		t.Errorf("first Update() = %v, want 10 (seed)", got)
	}
	v, have := e.Value()
	if !have || v != 10 {
		t.Errorf("Value() = (%v, %v), want (10, true)", v, have)
	}
}

func TestEWMABlendsSubsequentUpdates(t *testing.T) {
	e := NewEWMA(0.5)
	e.Update(10)
	got := e.Update(20)
	want := 0.5*10 + 0.5*20
	if got != want {
		t.Errorf("Update(20) = %v, want %v", got, want)
	}
}

func TestMeanOf(t *testing.T) {
	if _, err := MeanOf(nil); err != NoItems {
		t.Errorf("MeanOf(nil) = %v, want NoItems", err)
	}
	got, err := MeanOf([]float64{2, 4, 6})
	if err != nil {
		t.Fatalf("MeanOf: %v", err)
	}
	if got != 4 {
		t.Errorf("MeanOf([2,4,6]) = %v, want 4", got)
	}
}
