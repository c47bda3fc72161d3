package index

import "testing"

func TestPrimaryIndex_InsertAndGet(t *testing.T) {
	m := NewManager()
	doc := Document{"_id": "1", "name": "alice"}
	m.OnInsert("users", doc)

	got, ok := m.Get("users", "1")
	if !ok {
		t.Fatal("expected document to be found")
	}
	if got["name"] != "alice" {
		t.Errorf("got %v, want alice", got["name"])
	}

	if _, ok := m.Get("users", "missing"); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestSecondaryIndex_DeclareBackfillsAndLookup(t *testing.T) {
	m := NewManager()
	docs := []Document{
		{"_id": "1", "role": "admin"},
		{"_id": "2", "role": "admin"},
		{"_id": "3", "role": "member"},
	}
	for _, d := range docs {
		m.OnInsert("users", d)
	}

	if !m.Declare("users", "role", docs) {
		t.Fatal("first Declare should report newly registered")
	}
	if m.Declare("users", "role", docs) {
		t.Error("repeat Declare should be a no-op")
	}

	admins, ok := m.Lookup("users", "role", "admin")
	if !ok || len(admins) != 2 {
		t.Fatalf("got %v, want 2 admins", admins)
	}

	members, ok := m.Lookup("users", "role", "member")
	if !ok || len(members) != 1 {
		t.Fatalf("got %v, want 1 member", members)
	}
}

func TestSecondaryIndex_OnDeleteRemovesFromValueBucket(t *testing.T) {
	m := NewManager()
	doc1 := Document{"_id": "1", "role": "admin"}
	doc2 := Document{"_id": "2", "role": "admin"}
	m.OnInsert("users", doc1)
	m.OnInsert("users", doc2)
	m.Declare("users", "role", []Document{doc1, doc2})

	m.OnDelete("users", doc1)

	admins, ok := m.Lookup("users", "role", "admin")
	if !ok || len(admins) != 1 || admins[0]["_id"] != "2" {
		t.Fatalf("got %v, want only doc 2 remaining under admin", admins)
	}
}

func TestRegisterField_DoesNotBackfill(t *testing.T) {
	m := NewManager()
	m.OnInsert("users", Document{"_id": "1", "role": "admin"})

	m.RegisterField("users", "role")

	if !m.IsRegistered("users", "role") {
		t.Fatal("field should be registered")
	}
	if _, ok := m.Lookup("users", "role", "admin"); ok {
		t.Error("RegisterField must not backfill existing documents")
	}
}

func TestRebuild_ReplacesAllIndexState(t *testing.T) {
	m := NewManager()
	m.Declare("users", "role", nil)
	m.OnInsert("users", Document{"_id": "stale", "role": "admin"})

	fresh := []Document{{"_id": "1", "role": "member"}}
	m.Rebuild("users", fresh)

	if _, ok := m.Get("users", "stale"); ok {
		t.Error("Rebuild should discard documents not in the new set")
	}
	members, ok := m.Lookup("users", "role", "member")
	if !ok || len(members) != 1 {
		t.Fatalf("got %v, want 1 member after rebuild", members)
	}
	if admins, ok := m.Lookup("users", "role", "admin"); ok && len(admins) != 0 {
		t.Errorf("stale admin bucket should be gone, got %v", admins)
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in       interface{}
		wantOK   bool
		wantText string
	}{
		{"hello", true, "hello"},
		{float64(42), true, "42"},
		{int(7), true, "7"},
		{true, false, ""},
		{map[string]interface{}{}, false, ""},
	}
	for _, c := range cases {
		got, ok := Stringify(c.in)
		if ok != c.wantOK {
			t.Errorf("Stringify(%v) ok = %v, want %v", c.in, ok, c.wantOK)
		}
		if ok && got != c.wantText {
			t.Errorf("Stringify(%v) = %q, want %q", c.in, got, c.wantText)
		}
	}
}

func TestAllDeclarations(t *testing.T) {
	m := NewManager()
	m.Declare("users", "role", nil)
	m.Declare("orders", "status", nil)

	decls := m.AllDeclarations()
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
}
