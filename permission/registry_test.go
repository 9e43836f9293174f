package permission

import "testing"

func TestRegistryExtendKeepsSuperset(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("client", Client); err != nil {
		t.Fatalf("register: %v", err)
	}

	editor, err := r.Extend("editor", Client, 3)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !editor.Satisfies(Client) {
		t.Fatal("extended role must satisfy its base")
	}
	if editor.Satisfies(Developer) {
		t.Fatal("editor must not satisfy developer")
	}

	if _, err := r.Extend("broken", Developer, 0); err == nil {
		t.Fatal("expected extend onto an already-set bit to fail")
	}
}

func TestRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", Client); err == nil {
		t.Fatal("expected empty name to fail")
	}
	if err := r.Register("nobody", None); err == nil {
		t.Fatal("expected empty mask to fail")
	}
	if err := r.Register("Client", Client); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("client", Client); err == nil {
		t.Fatal("expected case-insensitive duplicate to fail")
	}
}

func TestRegistryFreeze(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Register("late", Mask(0b1000)); err == nil {
		t.Fatal("expected frozen registry to reject registration")
	}
	if r.Count() != 3 {
		t.Fatalf("expected 3 roles, got %d", r.Count())
	}
	names := r.Names()
	if len(names) != 3 || names[0] != "client" || names[2] != "super_admin" {
		t.Fatalf("unexpected names: %v", names)
	}
	if m, err := r.Parse("DEVELOPER"); err != nil || m != Developer {
		t.Fatalf("parse developer: %v %s", err, m)
	}
}
