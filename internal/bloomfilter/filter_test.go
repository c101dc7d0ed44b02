package bloomfilter

import "testing"

func TestNoFalseNegatives(t *testing.T) {
	f := New(1024, 3)
	keys := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma"), []byte("delta")}
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		if !f.MayContain(k) {
			t.Fatalf("expected %q to be reported present", k)
		}
	}
}

func TestAbsentKeyCanBeRuledOut(t *testing.T) {
	f := New(4096, 4)
	f.Add([]byte("present"))
	if f.MayContain([]byte("definitely-not-present-xyz")) {
		t.Fatal("expected a small filter with one entry to rule out an unrelated key")
	}
}

func TestSaturatedReportsFull(t *testing.T) {
	f := New(8, 1)
	if f.Saturated() {
		t.Fatal("expected fresh filter to be unsaturated")
	}
	for i := 0; i < 200; i++ {
		f.Add([]byte{byte(i)})
	}
	if !f.Saturated() {
		t.Fatal("expected small filter to saturate after many inserts")
	}
}

func TestNewPanicsOnZeroParams(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero m")
		}
	}()
	New(0, 3)
}
