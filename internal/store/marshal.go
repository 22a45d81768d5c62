package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lagprobe/internal/latency"
)

// marshalConfig converts the loop configuration to JSON TEXT for storage.
func marshalConfig(cfg latency.Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// unmarshalConfig parses JSON TEXT written by marshalConfig.
func unmarshalConfig(data string) (latency.Config, error) {
	var cfg latency.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return latency.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// normalizeLabel trims a label and converts it to NFC so visually identical
// labels compare equal in SQL.
func normalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
