package device

import "testing"

func TestDefaultRegistryLookup(t *testing.T) {
	r := Default()
	d, ok := r.Lookup("fajita")
	if !ok {
		t.Fatal("expected fajita to be registered")
	}
	if d.Name != "OnePlus 6T" {
		t.Fatalf("unexpected name: %s", d.Name)
	}
	if _, ok := r.Lookup("does-not-exist"); ok {
		t.Fatal("expected unknown device id to miss")
	}
}

func TestAddOverwritesByID(t *testing.T) {
	r := NewRegistry()
	r.Add(Descriptor{ID: "x", Name: "first"})
	r.Add(Descriptor{ID: "x", Name: "second"})
	if len(r.All()) != 1 {
		t.Fatalf("expected a single entry after overwrite, got %d", len(r.All()))
	}
	d, _ := r.Lookup("x")
	if d.Name != "second" {
		t.Fatalf("expected overwrite to stick, got %q", d.Name)
	}
}
