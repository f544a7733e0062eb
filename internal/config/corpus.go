package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Partition describes one logical collection of the corpus.
type Partition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Priority orders partitions for default selection at query time.
	// Lower value = queried first. Partitions without a priority sort last.
	Priority int `yaml:"priority"`
}

// Corpus is the manifest of partitions the service knows about.
type Corpus struct {
	Partitions []Partition `yaml:"partitions"`
}

// LoadCorpus reads the corpus manifest from path. A missing file returns the
// built-in manifest so a fresh checkout works without any setup.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultCorpus(), nil
		}
		return nil, fmt.Errorf("failed to read corpus manifest: %w", err)
	}

	var corpus Corpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("failed to parse corpus manifest: %w", err)
	}
	if len(corpus.Partitions) == 0 {
		return nil, fmt.Errorf("corpus manifest %s declares no partitions", path)
	}

	seen := make(map[string]bool, len(corpus.Partitions))
	for _, p := range corpus.Partitions {
		if p.Name == "" {
			return nil, fmt.Errorf("corpus manifest %s has a partition without a name", path)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("corpus manifest %s declares partition %q twice", path, p.Name)
		}
		seen[p.Name] = true
	}

	return &corpus, nil
}

// PriorityOrder returns partition names sorted by ascending priority,
// preserving manifest order within equal priorities.
func (c *Corpus) PriorityOrder() []string {
	names := make([]string, 0, len(c.Partitions))
	// Insertion sort keeps the manifest order stable for equal priorities.
	ordered := make([]Partition, 0, len(c.Partitions))
	for _, p := range c.Partitions {
		pos := len(ordered)
		for i, q := range ordered {
			if p.Priority < q.Priority {
				pos = i
				break
			}
		}
		ordered = append(ordered[:pos], append([]Partition{p}, ordered[pos:]...)...)
	}
	for _, p := range ordered {
		names = append(names, p.Name)
	}
	return names
}

// Has reports whether the manifest declares the given partition.
func (c *Corpus) Has(name string) bool {
	for _, p := range c.Partitions {
		if p.Name == name {
			return true
		}
	}
	return false
}

func defaultCorpus() *Corpus {
	return &Corpus{
		Partitions: []Partition{
			{Name: "forensic_cases", Description: "Casos forenses y medicina forense", Priority: 1},
			{Name: "criminology_theory", Description: "Teorías criminológicas generales", Priority: 2},
			{Name: "investigation_techniques", Description: "Técnicas de investigación criminal", Priority: 3},
			{Name: "serial_killers", Description: "Estudios de asesinos seriales", Priority: 4},
			{Name: "legislation", Description: "Legislación penal comparada", Priority: 5},
		},
	}
}
