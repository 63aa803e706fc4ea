package users

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed salary_levels.yaml
var salaryLevelsYAML []byte

// DefaultSalaryLevels returns the seeded public service salary levels 1-16.
func DefaultSalaryLevels() ([]SalaryLevel, error) {
	var levels []SalaryLevel
	if err := yaml.Unmarshal(salaryLevelsYAML, &levels); err != nil {
		return nil, fmt.Errorf("parse salary levels: %w", err)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels, nil
}
