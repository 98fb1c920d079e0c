package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnergyConfig tunes the energy regulator.
type EnergyConfig struct {
	Enabled           *bool    `yaml:"enabled,omitempty"`            // Run the physics engine (default true)
	ConservationLimit *float64 `yaml:"conservation_limit,omitempty"` // Total energy budget (default 50.0)
	BaseDecayRate     *float64 `yaml:"base_decay_rate,omitempty"`    // Per-second decay at full presence (default 0.1)
	DispersalFraction *float64 `yaml:"dispersal_fraction,omitempty"` // Fraction of energy pushed along links each step (default 0.3)
	TopK              *int     `yaml:"top_k,omitempty"`              // Strongest links kept per facet (default 8)
	Curiosity         *bool    `yaml:"curiosity,omitempty"`          // Spontaneous boosts for weak facets (default true)
}

// MemoryConfig tunes the persistence loops.
type MemoryConfig struct {
	MergeIntervalSeconds *int `yaml:"merge_interval_seconds,omitempty"` // Delta log compaction cadence (default 30)
	QueueSize            *int `yaml:"queue_size,omitempty"`             // Write-ahead queue bound (default 1024)
}

// PersonalityConfig biases emotional interpretation. All traits are 0..1.
type PersonalityConfig struct {
	Openness          float64 `yaml:"openness"`
	Conscientiousness float64 `yaml:"conscientiousness"`
	Extraversion      float64 `yaml:"extraversion"`
	Agreeableness     float64 `yaml:"agreeableness"`
	Neuroticism       float64 `yaml:"neuroticism"`
}

// TrinityConfig represents the top-level trinity.yml configuration
type TrinityConfig struct {
	Version     string             `yaml:"version"`
	Tier        string             `yaml:"tier"`               // free, pro, lifetime, or enterprise
	DataDir     string             `yaml:"data_dir,omitempty"` // State directory (default ./trinity-data)
	Energy      *EnergyConfig      `yaml:"energy,omitempty"`
	Memory      *MemoryConfig      `yaml:"memory,omitempty"`
	Personality *PersonalityConfig `yaml:"personality,omitempty"`
}

// Validate performs strict validation on the configuration and fills in
// defaults for anything omitted.
func (c *TrinityConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Tier gates ingestion limits; default to free
	if c.Tier == "" {
		c.Tier = "free"
	}
	switch c.Tier {
	case "free", "pro", "lifetime", "enterprise":
	default:
		return fmt.Errorf("invalid tier: %s (must be 'free', 'pro', 'lifetime', or 'enterprise')", c.Tier)
	}

	if c.DataDir == "" {
		c.DataDir = "./trinity-data"
	}

	if c.Energy == nil {
		c.Energy = &EnergyConfig{}
	}
	if err := c.Energy.validate(); err != nil {
		return err
	}

	if c.Memory == nil {
		c.Memory = &MemoryConfig{}
	}
	if err := c.Memory.validate(); err != nil {
		return err
	}

	if c.Personality == nil {
		c.Personality = &PersonalityConfig{
			Openness:          0.5,
			Conscientiousness: 0.5,
			Extraversion:      0.5,
			Agreeableness:     0.5,
			Neuroticism:       0.5,
		}
	}
	if err := c.Personality.validate(); err != nil {
		return err
	}

	return nil
}

func (e *EnergyConfig) validate() error {
	if e.Enabled == nil {
		enabled := true
		e.Enabled = &enabled
	}

	if e.ConservationLimit == nil {
		limit := 50.0
		e.ConservationLimit = &limit
	}
	if *e.ConservationLimit <= 0 {
		return fmt.Errorf("energy.conservation_limit must be > 0, got %g", *e.ConservationLimit)
	}

	if e.BaseDecayRate == nil {
		rate := 0.1
		e.BaseDecayRate = &rate
	}
	if *e.BaseDecayRate < 0 {
		return fmt.Errorf("energy.base_decay_rate must be >= 0, got %g", *e.BaseDecayRate)
	}

	if e.DispersalFraction == nil {
		frac := 0.3
		e.DispersalFraction = &frac
	}
	if *e.DispersalFraction < 0 || *e.DispersalFraction > 1 {
		return fmt.Errorf("energy.dispersal_fraction must be in [0, 1], got %g", *e.DispersalFraction)
	}

	if e.TopK == nil {
		k := 8
		e.TopK = &k
	}
	if *e.TopK < 1 {
		return fmt.Errorf("energy.top_k must be >= 1, got %d", *e.TopK)
	}

	if e.Curiosity == nil {
		enabled := true
		e.Curiosity = &enabled
	}

	return nil
}

func (m *MemoryConfig) validate() error {
	if m.MergeIntervalSeconds == nil {
		interval := 30
		m.MergeIntervalSeconds = &interval
	}
	if *m.MergeIntervalSeconds < 1 {
		return fmt.Errorf("memory.merge_interval_seconds must be >= 1, got %d", *m.MergeIntervalSeconds)
	}

	if m.QueueSize == nil {
		size := 1024
		m.QueueSize = &size
	}
	if *m.QueueSize < 1 {
		return fmt.Errorf("memory.queue_size must be >= 1, got %d", *m.QueueSize)
	}

	return nil
}

func (p *PersonalityConfig) validate() error {
	traits := map[string]float64{
		"openness":          p.Openness,
		"conscientiousness": p.Conscientiousness,
		"extraversion":      p.Extraversion,
		"agreeableness":     p.Agreeableness,
		"neuroticism":       p.Neuroticism,
	}
	for name, v := range traits {
		if v < 0 || v > 1 {
			return fmt.Errorf("personality.%s must be in [0, 1], got %g", name, v)
		}
	}
	return nil
}

// Load reads and validates trinity.yml from the specified path
func Load(path string) (*TrinityConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config TrinityConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no trinity.yml exists.
func Default() *TrinityConfig {
	c := &TrinityConfig{Version: "1.0"}
	// Validate never fails on an otherwise-empty config; it only fills
	// defaults.
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}
