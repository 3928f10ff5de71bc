package gameserver

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition is one registered game server as announced in the server list.
// Live state (player counts, reachability) comes from the connected link.
type Definition struct {
	ID         int    `yaml:"id"`
	Name       string `yaml:"name"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	MaxPlayers int    `yaml:"max_players"`
}

type definitionsFile struct {
	Servers []Definition `yaml:"servers"`
}

// LoadDefinitions reads the static game-server registry.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server definitions %s: %w", path, err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse server definitions %s: %w", path, err)
	}
	if len(file.Servers) == 0 {
		return nil, fmt.Errorf("server definitions %s: no servers defined", path)
	}

	seen := make(map[int]bool, len(file.Servers))
	for _, def := range file.Servers {
		if def.ID <= 0 {
			return nil, fmt.Errorf("server definitions %s: invalid id %d", path, def.ID)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("server definitions %s: duplicate id %d", path, def.ID)
		}
		seen[def.ID] = true
	}

	sort.Slice(file.Servers, func(i, j int) bool {
		return file.Servers[i].ID < file.Servers[j].ID
	})
	return file.Servers, nil
}
