package config

import (
	"path/filepath"
	"testing"

	"tielinehub.dev/tielinehub/router"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s := Default()
	s.RouterA = RouterEndpoint{Host: "192.168.1.10", Port: 9990, Protocol: "videohub", Levels: 1, Name: "Main"}
	s.TieLines = TieLines{AToB: []TieLinePort{{Output: 7, Input: 0}}}
	s.Salvos = []Salvo{{Name: "Show open", Routes: []SalvoRoute{{Output: 0, Input: 1}}}}

	if err := Save(path, s); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RouterA != s.RouterA {
		t.Fatalf("got %+v, want %+v", got.RouterA, s.RouterA)
	}
	if len(got.Salvos) != 1 || got.Salvos[0].Name != "Show open" {
		t.Fatalf("salvos did not round-trip: %+v", got.Salvos)
	}
	if !got.AutoReconnect {
		t.Fatal("autoReconnect should default true")
	}
}

func TestTieLinesRouterConfigRoundTrip(t *testing.T) {
	cfg := router.Config{AToB: []router.TiePort{{Output: 7, Input: 0}}, BToA: []router.TiePort{{Output: 3, Input: 2}}}
	t2 := FromRouterConfig(cfg)
	back := t2.ToRouterConfig()
	if back.AToB[0] != cfg.AToB[0] || back.BToA[0] != cfg.BToA[0] {
		t.Fatalf("round trip mismatch: got %+v", back)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/state.json"); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}
