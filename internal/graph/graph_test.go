package graph

import "testing"

func TestPropertySetOrderPreserved(t *testing.T) {
	ps := NewPropertySet()
	ps.Set("b", NewStringValue("2"))
	ps.Set("a", NewStringValue("1"))
	ps.Set("b", NewStringValue("2-updated"))

	keys := ps.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Fatalf("expected insertion order [b a], got %v", keys)
	}
	v, ok := ps.Get("b")
	if !ok {
		t.Fatalf("expected b to be present")
	}
	if s, _ := v.AsString(); s != "2-updated" {
		t.Fatalf("expected updated value, got %q", s)
	}
}

func TestPropertySetCloneIsIndependent(t *testing.T) {
	ps := NewPropertySet()
	ps.Set("a", NewIntValue(1))
	clone := ps.Clone()
	clone.Set("b", NewIntValue(2))

	if _, ok := ps.Get("b"); ok {
		t.Fatalf("mutating clone should not affect original")
	}
}

func TestPayloadHashStableAndSensitive(t *testing.T) {
	ps := NewPropertySet()
	ps.Set("label", NewStringValue("x"))

	h1 := PayloadHash(KindNode, "n1", ps, false)
	h2 := PayloadHash(KindNode, "n1", ps, false)
	if h1 != h2 {
		t.Fatalf("expected stable hash for identical input")
	}

	ps2 := NewPropertySet()
	ps2.Set("label", NewStringValue("y"))
	h3 := PayloadHash(KindNode, "n1", ps2, false)
	if h1 == h3 {
		t.Fatalf("expected different hash for different property value")
	}
}
