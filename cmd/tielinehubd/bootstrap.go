package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tielinehub.dev/tielinehub/config"
	"tielinehub.dev/tielinehub/orchestrator"
	"tielinehub.dev/tielinehub/router"
)

// bootstrapConfig is the YAML file tielinehubd reads to run standalone,
// without the external UI collaborator attached. It carries the same
// router/tie-line shape as config.PersistedState plus the bits that are
// only meaningful to a running daemon (bridge listen address, path to
// the JSON state file the UI collaborator would otherwise own).
type bootstrapConfig struct {
	RouterA       endpointConfig `yaml:"routerA"`
	RouterB       endpointConfig `yaml:"routerB"`
	TieLines      tieLinesConfig `yaml:"tieLines"`
	BridgeAddr    string         `yaml:"bridgeAddr"`
	StatePath     string         `yaml:"statePath"`
	AutoConnect   bool           `yaml:"autoConnect"`
	AutoReconnect bool           `yaml:"autoReconnect"`
	LogLevel      string         `yaml:"logLevel"`
}

type endpointConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
	Levels   int    `yaml:"levels"`
	Inputs   int    `yaml:"inputs"`
	Outputs  int    `yaml:"outputs"`
	Name     string `yaml:"name"`
}

type tiePortConfig struct {
	Output int `yaml:"output"`
	Input  int `yaml:"input"`
}

type tieLinesConfig struct {
	AToB []tiePortConfig `yaml:"aToB"`
	BToA []tiePortConfig `yaml:"bToA"`
}

func defaultBootstrap() bootstrapConfig {
	return bootstrapConfig{
		BridgeAddr:    ":9990",
		AutoReconnect: true,
		LogLevel:      "info",
	}
}

func loadBootstrap(path string) (bootstrapConfig, error) {
	cfg := defaultBootstrap()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("tielinehubd: read bootstrap %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("tielinehubd: parse bootstrap %s: %w", path, err)
	}
	return cfg, nil
}

func (c tieLinesConfig) toRouterConfig() router.Config {
	rc := router.Config{
		AToB: make([]router.TiePort, len(c.AToB)),
		BToA: make([]router.TiePort, len(c.BToA)),
	}
	for i, p := range c.AToB {
		rc.AToB[i] = router.TiePort{Output: p.Output, Input: p.Input}
	}
	for i, p := range c.BToA {
		rc.BToA[i] = router.TiePort{Output: p.Output, Input: p.Input}
	}
	return rc
}

func (e endpointConfig) toConnectOptions() orchestrator.RouterConnectOptions {
	return orchestrator.RouterConnectOptions{
		Host:     e.Host,
		Port:     e.Port,
		Protocol: e.Protocol,
		Levels:   e.Levels,
		Inputs:   e.Inputs,
		Outputs:  e.Outputs,
	}
}

func (e endpointConfig) configured() bool {
	return e.Host != ""
}

// loadSalvos reads the optional JSON state file's saved salvos, if a
// statePath is configured. A daemon run without a UI collaborator
// attached need not have one, so a missing file is not an error.
func loadSalvos(statePath string) ([]config.Salvo, error) {
	if statePath == "" {
		return nil, nil
	}
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		return nil, nil
	}
	s, err := config.Load(statePath)
	if err != nil {
		return nil, err
	}
	return s.Salvos, nil
}
