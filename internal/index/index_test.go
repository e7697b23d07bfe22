package index

import "testing"

func TestSetGetDelete(t *testing.T) {
	idx := New(0)

	if existed := idx.Set("a", "1"); existed {
		t.Error("first Set should report a new key")
	}
	if v, ok := idx.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}
	if existed := idx.Set("a", "2"); !existed {
		t.Error("second Set should report an existing key")
	}
	if v, _ := idx.Get("a"); v != "2" {
		t.Errorf("Get(a) = %q, want 2", v)
	}
	if !idx.Delete("a") {
		t.Error("Delete should report the key existed")
	}
	if _, ok := idx.Get("a"); ok {
		t.Error("key should be gone after Delete")
	}
}

func TestDeleteAbsent(t *testing.T) {
	idx := New(4)
	idx.Set("keep", "x")

	if idx.Delete("missing") {
		t.Error("Delete of an absent key should return false")
	}
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1", idx.Len())
	}
	if v, ok := idx.Get("keep"); !ok || v != "x" {
		t.Error("unrelated key was disturbed")
	}
}

func TestEmptyValue(t *testing.T) {
	idx := New(0)
	idx.Set("k", "")

	v, ok := idx.Get("k")
	if !ok || v != "" {
		t.Errorf("Get(k) = %q, %v; want empty, true", v, ok)
	}
}
