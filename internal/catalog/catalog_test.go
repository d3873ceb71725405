package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func testCatalog() *Catalog {
	return NewFromServices(map[string]Service{
		"corte":       {Name: "Corte", Price: 45, DurationMinutes: 40},
		"barba":       {Name: "Barba", Price: 35, DurationMinutes: 20},
		"combo":       {Name: "Corte + Barba", Price: 70, DurationMinutes: 60},
		"sobrancelha": {Name: "Sobrancelha", Price: 15},
	})
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Corte de Cabelo": "corte",
		"corte":           "corte",
		"FAZER BARBA":     "barba",
		"corte e barba":   "combo",
		"Sobrancelhas":    "sobrancelha",
		"  luzes  ":       "luzes",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDurationMinutes(t *testing.T) {
	c := testCatalog()

	if got := c.DurationMinutes("Corte de Cabelo"); got != 40 {
		t.Errorf("corte duration = %d, want 40", got)
	}
	if got := c.DurationMinutes("fazer barba"); got != 20 {
		t.Errorf("barba duration = %d, want 20", got)
	}
	// Configured service without a duration falls back to the default.
	if got := c.DurationMinutes("sobrancelha"); got != DefaultDurationMinutes {
		t.Errorf("sobrancelha duration = %d, want default %d", got, DefaultDurationMinutes)
	}
	// Unknown service falls back to the default.
	if got := c.DurationMinutes("luzes"); got != DefaultDurationMinutes {
		t.Errorf("unknown duration = %d, want default %d", got, DefaultDurationMinutes)
	}
}

func TestPrice(t *testing.T) {
	c := testCatalog()

	price, ok := c.Price("combo")
	if !ok || price != 70 {
		t.Errorf("combo price = %v ok=%v, want 70 true", price, ok)
	}
	if _, ok := c.Price("luzes"); ok {
		t.Error("unknown service should not report a price")
	}
}

func TestPartialMatch(t *testing.T) {
	c := testCatalog()

	svc, ok := c.Info("sobrancelha completa")
	if !ok || svc.Name != "Sobrancelha" {
		t.Errorf("partial match failed: %v ok=%v", svc, ok)
	}
}

func TestSummary(t *testing.T) {
	c := NewFromServices(map[string]Service{
		"corte": {Name: "Corte", Price: 45, DurationMinutes: 40},
		"barba": {Name: "Barba", Price: 35, DurationMinutes: 20},
	})
	want := "Barba (R$35, 20min), Corte (R$45, 40min)"
	if got := c.Summary(); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.yaml")
	yaml := `services:
  corte:
    name: Corte
    price: 45
    duration_minutes: 40
  barba:
    name: Barba
    price: 35
    duration_minutes: 20
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("loaded %d services, want 2", c.Len())
	}
	if got := c.DurationMinutes("corte"); got != 40 {
		t.Errorf("corte duration = %d, want 40", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing catalog file must not be an error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty catalog, got %d services", c.Len())
	}
	if got := c.DurationMinutes("corte"); got != DefaultDurationMinutes {
		t.Errorf("empty catalog duration = %d, want default", got)
	}
}
