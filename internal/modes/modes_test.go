package modes

import "testing"

func TestByName(t *testing.T) {
	m, err := ByName("2v2 Fixed Teams")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	if m.Key != "fixed2v2" {
		t.Errorf("key = %q, want fixed2v2", m.Key)
	}
	if m.PlayerCount != 4 {
		t.Errorf("player count = %d, want 4", m.PlayerCount)
	}
	if m.Teams() != 2 {
		t.Errorf("teams = %d, want 2", m.Teams())
	}
	if m.Randomize {
		t.Error("fixed mode should not randomize")
	}
}

func TestByName_Unknown(t *testing.T) {
	if _, err := ByName("5v5 Chaos"); err == nil {
		t.Fatal("expected error for unknown mode name")
	}
}

func TestByKey(t *testing.T) {
	m, err := ByKey("random3v3")
	if err != nil {
		t.Fatalf("ByKey: %v", err)
	}
	if !m.Randomize {
		t.Error("random mode should randomize")
	}
	if got := m.Teams(); got != 2 {
		t.Errorf("teams = %d, want 2", got)
	}
}

func TestFFA(t *testing.T) {
	m, err := ByKey("ffa")
	if err != nil {
		t.Fatalf("ByKey: %v", err)
	}
	if !m.FFA() {
		t.Error("ffa mode should report FFA")
	}
	if m.PlayerCount != 0 {
		t.Errorf("ffa player count = %d, want 0 (variable)", m.PlayerCount)
	}
}

func TestAll_NamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range All() {
		if seen[m.Name] {
			t.Errorf("duplicate mode name %q", m.Name)
		}
		seen[m.Name] = true
	}
}

func TestAll_IsCopy(t *testing.T) {
	a := All()
	a[0].Name = "mutated"
	if catalog[0].Name == "mutated" {
		t.Fatal("All must return a copy of the catalog")
	}
}
