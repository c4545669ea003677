package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// StaticTables is the YAML shape of an operator-editable copy of the
// pricing/compatibility tables hard-coded in pkg/pricing and
// pkg/validate. Nothing in genforge calls LoadStaticTables or passes a
// StaticTables value to pkg/pricing or pkg/validate, so those packages
// always use their built-in tables.
type StaticTables struct {
	Pricing           map[string]int      `yaml:"pricing"`
	ModelResolutions  map[string][]string `yaml:"model_resolutions"`
	ModelDurations    map[string][]int    `yaml:"model_durations"`
}

// LoadStaticTables reads a YAML tables file. A missing file is not an
// error: it returns an empty StaticTables.
func LoadStaticTables(path string) (StaticTables, error) {
	var t StaticTables
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, err
	}
	return t, nil
}
