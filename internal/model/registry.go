package model

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Registry resolves forecasting artifacts on disk.
//
// For a (city, horizon) pair the candidates are tried in order, first
// loadable artifact wins:
//
//	<city>_<horizon>_model.json   city-specific
//	<city>_<horizon>_model.gob    city-specific, legacy format
//	aqi_pred_<horizon>.json       generic
//	aqi_pred_<horizon>.gob        generic, legacy format
//
// A corrupt candidate is logged and skipped; it does not stop the chain.
type Registry struct {
	dir string
	log *slog.Logger
}

func NewRegistry(dir string, log *slog.Logger) *Registry {
	return &Registry{dir: dir, log: log}
}

// Load returns the first resolvable model for the pair, or nil when no
// candidate exists or loads. Absence is not an error.
func (r *Registry) Load(city, horizon string) Model {
	city = strings.ToLower(city)
	candidates := []string{
		fmt.Sprintf("%s_%s_model.json", city, horizon),
		fmt.Sprintf("%s_%s_model.gob", city, horizon),
		fmt.Sprintf("aqi_pred_%s.json", horizon),
		fmt.Sprintf("aqi_pred_%s.gob", horizon),
	}

	for _, name := range candidates {
		path := filepath.Join(r.dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := loadArtifact(path)
		if err != nil {
			r.log.Warn("failed to load model, trying next candidate",
				"path", path, "error", err)
			continue
		}
		return m
	}
	return nil
}

func loadArtifact(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var a artifact
	switch filepath.Ext(path) {
	case ".json":
		if err := json.NewDecoder(f).Decode(&a); err != nil {
			return nil, fmt.Errorf("decode json artifact: %w", err)
		}
	case ".gob":
		if err := gob.NewDecoder(f).Decode(&a); err != nil {
			return nil, fmt.Errorf("decode gob artifact: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown artifact format %q", filepath.Ext(path))
	}

	if len(a.Coefficients) == 0 {
		return nil, fmt.Errorf("artifact has no coefficients")
	}
	if len(a.Features) > 0 && len(a.Features) != len(a.Coefficients) {
		return nil, fmt.Errorf("artifact has %d features but %d coefficients",
			len(a.Features), len(a.Coefficients))
	}
	return &a, nil
}
