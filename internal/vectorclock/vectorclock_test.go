package vectorclock

import "testing"

func TestReflexivity(t *testing.T) {
	c := FromMap(map[string]uint64{"a": 3, "b": 1})
	if got := Compare(c, c); got != Equal {
		t.Fatalf("Compare(c, c) = %v, want Equal", got)
	}
}

func TestAntisymmetry(t *testing.T) {
	a := FromMap(map[string]uint64{"a": 1})
	b := FromMap(map[string]uint64{"a": 2})
	if Compare(a, b) != Before {
		t.Fatalf("expected a Before b")
	}
	if Compare(b, a) != After {
		t.Fatalf("expected b After a")
	}
}

func TestConcurrent(t *testing.T) {
	a := FromMap(map[string]uint64{"a": 2, "b": 0})
	b := FromMap(map[string]uint64{"a": 1, "b": 1})
	if Compare(a, b) != Concurrent {
		t.Fatalf("expected Concurrent, got %v", Compare(a, b))
	}
	if Compare(b, a) != Concurrent {
		t.Fatalf("expected Concurrent (symmetric), got %v", Compare(b, a))
	}
}

func TestMergeCommutativeAssociativeIdempotent(t *testing.T) {
	a := FromMap(map[string]uint64{"a": 1, "b": 2})
	b := FromMap(map[string]uint64{"a": 3, "c": 1})
	c := FromMap(map[string]uint64{"b": 5})

	if Compare(a.Merge(b), b.Merge(a)) != Equal {
		t.Fatalf("merge not commutative")
	}
	left := a.Merge(b).Merge(c)
	right := a.Merge(b.Merge(c))
	if Compare(left, right) != Equal {
		t.Fatalf("merge not associative")
	}
	if Compare(a.Merge(a), a) != Equal {
		t.Fatalf("merge not idempotent")
	}
}

func TestTickStrictlyAdvances(t *testing.T) {
	c := New()
	ticked := c.Tick("a")
	if Compare(c, ticked) != Before {
		t.Fatalf("expected tick to strictly advance clock")
	}
}

func TestEmptyClock(t *testing.T) {
	if !New().IsEmpty() {
		t.Fatalf("expected New() to be empty")
	}
	if FromMap(map[string]uint64{"a": 0}).IsEmpty() != true {
		t.Fatalf("zero-valued entries should not count as non-empty")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := FromMap(map[string]uint64{"a": 3, "b": 7})
	data, err := c.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Clock
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if Compare(c, out) != Equal {
		t.Fatalf("round-trip changed clock value")
	}
}

func TestDominates(t *testing.T) {
	a := FromMap(map[string]uint64{"a": 2, "b": 1})
	b := FromMap(map[string]uint64{"a": 1, "b": 1})
	if !Dominates(a, b) {
		t.Fatalf("expected a to dominate b")
	}
	if Dominates(b, a) {
		t.Fatalf("did not expect b to dominate a")
	}
}
