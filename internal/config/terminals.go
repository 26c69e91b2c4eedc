package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"govlink/checkin-service/internal/models"

	"gopkg.in/yaml.v3"
)

var ErrInvalidRegistry = errors.New("invalid terminal registry")

// Registry maps terminal ids to the desk configuration loaded from YAML:
//
//	terminals:
//	  - id: desk-1
//	    department: Immigration
//	    office: Colombo Head Office
//	    key_hash: $2a$10$...
type Registry struct {
	terminals map[string]models.Terminal
}

type registryFile struct {
	Terminals []models.Terminal `yaml:"terminals"`
}

func LoadTerminals(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTerminals(data)
}

func ParseTerminals(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	return NewRegistry(file.Terminals)
}

func NewRegistry(terminals []models.Terminal) (*Registry, error) {
	reg := &Registry{terminals: make(map[string]models.Terminal, len(terminals))}
	for i, terminal := range terminals {
		terminal.ID = strings.TrimSpace(terminal.ID)
		terminal.Department = strings.TrimSpace(terminal.Department)
		if terminal.ID == "" {
			return nil, fmt.Errorf("%w: terminal %d has no id", ErrInvalidRegistry, i)
		}
		if terminal.Department == "" {
			return nil, fmt.Errorf("%w: terminal %s has no department", ErrInvalidRegistry, terminal.ID)
		}
		if _, dup := reg.terminals[terminal.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate terminal %s", ErrInvalidRegistry, terminal.ID)
		}
		reg.terminals[terminal.ID] = terminal
	}
	return reg, nil
}

func (r *Registry) Get(id string) (models.Terminal, bool) {
	if r == nil {
		return models.Terminal{}, false
	}
	terminal, ok := r.terminals[strings.TrimSpace(id)]
	return terminal, ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.terminals)
}
