package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyLogging     = "logging"
	keyDatabase    = "database"
	keyCache       = "cache"
	keySources     = "sources"
	keyMatching    = "matching"
	keyCalculation = "calculation"
	keyServer      = "server"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyLogging:     true,
	keyDatabase:    true,
	keyCache:       true,
	keySources:     true,
	keyMatching:    true,
	keyCalculation: true,
	keyServer:      true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	for key, node := range overlay {
		node := node
		if !knownTopLevelKeys[key] {
			continue
		}
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// decodeSection decodes node into a fresh zero value and replaces the
// matching section of target with it.
func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyLogging:
		return replace(node, &target.Logging)
	case keyDatabase:
		return replace(node, &target.Database)
	case keyCache:
		return replace(node, &target.Cache)
	case keySources:
		// Credentials never come from YAML; keep the ones already resolved.
		kbobKey, epdKey := target.Sources.KBOB.APIKey, target.Sources.OpenEPD.APIKey
		if err := replace(node, &target.Sources); err != nil {
			return err
		}
		target.Sources.KBOB.APIKey, target.Sources.OpenEPD.APIKey = kbobKey, epdKey
		return nil
	case keyMatching:
		return replace(node, &target.Matching)
	case keyCalculation:
		return replace(node, &target.Calculation)
	case keyServer:
		return replace(node, &target.Server)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func replace[T any](node *yaml.Node, dst *T) error {
	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	*dst = v
	return nil
}
