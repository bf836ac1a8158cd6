// Package config defines the JSON document persisted by the external
// settings collaborator (spec section 6): router endpoints, tie-line
// configuration, salvo presets, and the auto-connect/auto-reconnect
// flags. This package only models and (de)serializes the document; the
// orchestrator is responsible for applying it.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"tielinehub.dev/tielinehub/router"
)

// RouterEndpoint describes how to reach one physical router.
type RouterEndpoint struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Levels   int    `json:"levels"`
	Name     string `json:"name"`
}

// TieLinePort mirrors router.TiePort for JSON (de)serialization.
type TieLinePort struct {
	Output int `json:"output"`
	Input  int `json:"input"`
}

// TieLines is the persisted tie-line configuration.
type TieLines struct {
	AToB []TieLinePort `json:"aToB"`
	BToA []TieLinePort `json:"bToA"`
}

// ToRouterConfig converts the persisted form to router.Config.
func (t TieLines) ToRouterConfig() router.Config {
	cfg := router.Config{
		AToB: make([]router.TiePort, len(t.AToB)),
		BToA: make([]router.TiePort, len(t.BToA)),
	}
	for i, p := range t.AToB {
		cfg.AToB[i] = router.TiePort{Output: p.Output, Input: p.Input}
	}
	for i, p := range t.BToA {
		cfg.BToA[i] = router.TiePort{Output: p.Output, Input: p.Input}
	}
	return cfg
}

// FromRouterConfig converts router.Config to the persisted form.
func FromRouterConfig(cfg router.Config) TieLines {
	t := TieLines{
		AToB: make([]TieLinePort, len(cfg.AToB)),
		BToA: make([]TieLinePort, len(cfg.BToA)),
	}
	for i, p := range cfg.AToB {
		t.AToB[i] = TieLinePort{Output: p.Output, Input: p.Input}
	}
	for i, p := range cfg.BToA {
		t.BToA[i] = TieLinePort{Output: p.Output, Input: p.Input}
	}
	return t
}

// SalvoRoute is one crosspoint change within a saved salvo.
type SalvoRoute struct {
	Output int `json:"output"`
	Input  int `json:"input"`
}

// Salvo is a named, saved batch of virtual route changes.
type Salvo struct {
	Name   string       `json:"name"`
	Routes []SalvoRoute `json:"routes"`
}

// PersistedState is the full document persisted between sessions.
type PersistedState struct {
	RouterA       RouterEndpoint `json:"routerA"`
	RouterB       RouterEndpoint `json:"routerB"`
	TieLines      TieLines       `json:"tieLines"`
	Salvos        []Salvo        `json:"salvos"`
	AutoConnect   bool           `json:"autoConnect"`
	AutoReconnect bool           `json:"autoReconnect"`
}

// Default returns an empty but valid PersistedState: no endpoints
// configured, auto-reconnect on, auto-connect off.
func Default() PersistedState {
	return PersistedState{
		AutoReconnect: true,
	}
}

// Load reads and parses a PersistedState document from path.
func Load(path string) (PersistedState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PersistedState{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var s PersistedState
	if err := json.Unmarshal(data, &s); err != nil {
		return PersistedState{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}

// Save writes the PersistedState document to path as indented JSON.
func Save(path string, s PersistedState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
