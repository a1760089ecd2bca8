package alerts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Supervisor is one entry of the on-call roster. Tier 1 supervisors receive
// every alert; higher tiers are pulled in when a case needs a wider pool.
type Supervisor struct {
	ID      string `yaml:"id" json:"supervisor_id"`
	Name    string `yaml:"name" json:"name"`
	Contact string `yaml:"contact" json:"contact"`
	Tier    int    `yaml:"tier" json:"tier"`
	OnCall  bool   `yaml:"on_call" json:"on_call"`
}

type rosterFile struct {
	Supervisors []Supervisor `yaml:"supervisors"`
}

// LoadRoster reads the supervisor roster from a YAML file.
func LoadRoster(filePath string) ([]Supervisor, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var file rosterFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return nil, fmt.Errorf("failed to parse supervisor roster %s: %w", filePath, err)
	}
	if len(file.Supervisors) == 0 {
		return nil, fmt.Errorf("supervisor roster %s contains no supervisors", filePath)
	}
	for i, supervisor := range file.Supervisors {
		if supervisor.ID == "" {
			return nil, fmt.Errorf("supervisor at index %d has empty id", i)
		}
		if supervisor.Tier < 1 {
			return nil, fmt.Errorf("supervisor %q has tier %d, must be >= 1", supervisor.ID, supervisor.Tier)
		}
	}
	return file.Supervisors, nil
}
