package target

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// NotFoundError reports a registry miss, either by name or by autodetected
// chip identity.
type NotFoundError struct {
	Name string
	Chip *ChipInfo
}

func (e *NotFoundError) Error() string {
	if e.Chip != nil {
		return fmt.Sprintf("target: no target known for chip %s", e.Chip)
	}
	return fmt.Sprintf("target: target %q not found", e.Name)
}

// Registry maps target names and chip identities to descriptors. Lookups are
// case-insensitive on names. The registry never hands out its internal
// descriptor pointers for mutation; Target contents are treated as immutable.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Target
	byChip map[ChipInfo]*Target
}

// NewRegistry creates a registry preloaded with the built-in generic targets.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]*Target),
		byChip: make(map[ChipInfo]*Target),
	}
	for i := range builtinTargets {
		r.Add(&builtinTargets[i])
	}
	return r
}

// Add registers a target under its name and optionally under one or more chip
// identities for autodetection.
func (r *Registry) Add(t *Target, chips ...ChipInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[strings.ToLower(t.Name)] = t
	for _, chip := range chips {
		r.byChip[chip] = t
	}
}

// LookupByName returns the target registered under the given name.
func (r *Registry) LookupByName(name string) (*Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byName[strings.ToLower(name)]; ok {
		return t, nil
	}
	return nil, &NotFoundError{Name: name}
}

// LookupByChipInfo returns the target registered for an autodetected chip
// identity.
func (r *Registry) LookupByChipInfo(chip ChipInfo) (*Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byChip[chip]; ok {
		return t, nil
	}
	return nil, &NotFoundError{Chip: &chip}
}

// chipFamily is the on-disk YAML schema for a family of chip variants.
type chipFamily struct {
	Name     string `yaml:"name"`
	Variants []struct {
		Name      string         `yaml:"name"`
		Core      CoreType       `yaml:"core"`
		MemoryMap []MemoryRegion `yaml:"memory_map"`
		ChipIDs   []struct {
			Manufacturer uint16 `yaml:"manufacturer"`
			Part         uint16 `yaml:"part"`
		} `yaml:"chip_ids"`
		FlashAlgorithms []rawAlgorithmYAML `yaml:"flash_algorithms"`
	} `yaml:"variants"`
}

// rawAlgorithmYAML carries the base64-encoded instruction blob before decode.
type rawAlgorithmYAML struct {
	RawFlashAlgorithm `yaml:",inline"`
	Instructions      string `yaml:"instructions"`
}

// LoadFile parses a YAML chip family file and registers every variant.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("target: read %s: %w", path, err)
	}
	var family chipFamily
	if err := yaml.Unmarshal(data, &family); err != nil {
		return fmt.Errorf("target: parse %s: %w", path, err)
	}
	for _, v := range family.Variants {
		if v.Name == "" {
			return fmt.Errorf("target: %s: variant without a name in family %q", path, family.Name)
		}
		t := &Target{
			Name:      v.Name,
			Core:      v.Core,
			MemoryMap: v.MemoryMap,
		}
		for _, a := range v.FlashAlgorithms {
			algo := a.RawFlashAlgorithm
			if a.Instructions != "" {
				blob, err := base64.StdEncoding.DecodeString(a.Instructions)
				if err != nil {
					return fmt.Errorf("target: %s: algorithm %q instructions: %w", path, a.Name, err)
				}
				algo.Instructions = blob
			}
			t.FlashAlgorithms = append(t.FlashAlgorithms, algo)
		}
		chips := make([]ChipInfo, 0, len(v.ChipIDs))
		for _, id := range v.ChipIDs {
			chips = append(chips, ChipInfo{Manufacturer: id.Manufacturer, Part: id.Part})
		}
		r.Add(t, chips...)
	}
	return nil
}

// LoadDir recursively loads all .yaml/.yml chip family files from a directory.
func (r *Registry) LoadDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return r.LoadFile(path)
		default:
			return nil
		}
	})
}

// builtinTargets are always available without any chip description files on
// disk. They carry no flash algorithms and a conservative memory map.
var builtinTargets = []Target{
	{
		Name: "generic-cortex-m0",
		Core: CoreTypeCortexM0,
		MemoryMap: []MemoryRegion{
			{Kind: MemoryKindNVM, Start: 0x0000_0000, End: 0x0004_0000},
			{Kind: MemoryKindRAM, Start: 0x2000_0000, End: 0x2000_8000},
		},
	},
	{
		Name: "generic-cortex-m3",
		Core: CoreTypeCortexM3,
		MemoryMap: []MemoryRegion{
			{Kind: MemoryKindNVM, Start: 0x0800_0000, End: 0x0808_0000},
			{Kind: MemoryKindRAM, Start: 0x2000_0000, End: 0x2001_0000},
		},
	},
	{
		Name: "generic-cortex-m4",
		Core: CoreTypeCortexM4,
		MemoryMap: []MemoryRegion{
			{Kind: MemoryKindNVM, Start: 0x0800_0000, End: 0x0810_0000},
			{Kind: MemoryKindRAM, Start: 0x2000_0000, End: 0x2002_0000},
		},
	},
}

// DefaultRegistry is the process-wide registry used when a caller does not
// supply its own.
var DefaultRegistry = NewRegistry()
