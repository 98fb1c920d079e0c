package crystal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// System manages the lifecycle of every crystal: creation, governed use,
// linking, decay and recurring-pattern abstraction. It is not safe for
// concurrent use; the orchestration layer serializes access.
type System struct {
	governance *Engine
	logger     *zap.Logger

	crystals map[string]*Crystal

	totalCreated    int
	totalEvolutions int
	levelCounts     map[Level]int
	pathwayHistory  map[string]int

	recurringPatterns  map[string]int
	abstractedConcepts map[string][]string
}

// NewSystem creates an empty crystal system governed by the given engine.
func NewSystem(governance *Engine, logger *zap.Logger) *System {
	return &System{
		governance:         governance,
		logger:             logger,
		crystals:           make(map[string]*Crystal),
		levelCounts:        make(map[Level]int),
		pathwayHistory:     make(map[string]int),
		recurringPatterns:  make(map[string]int),
		abstractedConcepts: make(map[string][]string),
	}
}

// Get returns the crystal for a concept (case-insensitive), or nil.
func (s *System) Get(concept string) *Crystal {
	for _, c := range s.crystals {
		if strings.EqualFold(c.Concept, concept) {
			return c
		}
	}
	return nil
}

// GetByID returns the crystal with the given id, or nil.
func (s *System) GetByID(id string) *Crystal {
	return s.crystals[id]
}

// GetOrCreate returns the crystal for a concept, creating a BASE crystal if
// none exists. Concept matching is case-insensitive, so re-using a concept
// never duplicates it.
func (s *System) GetOrCreate(concept string, initialContent any) *Crystal {
	if c := s.Get(concept); c != nil {
		return c
	}

	id := "crystal_" + uuid.New().String()[:8]
	c := NewCrystal(id, concept)

	if initialContent != nil {
		facet := c.AddFacet("definition", initialContent, 0.7)
		result := s.governance.ApplyLaw(c, nil, ActionAddFacet)
		facet.Strengthen(result.EnergyChange)
	}

	s.crystals[c.ID] = c
	s.totalCreated++
	s.levelCounts[LevelBase]++

	s.logger.Debug("crystal created",
		zap.String("crystal_id", c.ID),
		zap.String("concept", concept))
	return c
}

// Use applies governance to a crystal, records the use, and evolves the
// crystal when it clears its current level's criteria.
func (s *System) Use(concept string, ctx *ActionContext) *Crystal {
	c := s.GetOrCreate(concept, nil)

	result := s.governance.ApplyLaw(c, ctx, ActionUse)
	c.Use(result)

	if c.CheckEvolutionCriteria(ctx) {
		oldLevel := c.Level
		if c.Evolve() {
			s.totalEvolutions++
			s.levelCounts[oldLevel]--
			s.levelCounts[c.Level]++
			s.logger.Info("crystal evolved",
				zap.String("concept", c.Concept),
				zap.String("from", oldLevel.String()),
				zap.String("to", c.Level.String()))
		}
	}

	return c
}

// Link creates or strengthens the symmetric connection between two
// concepts. The collision outcome modulates the weight (+50% positive,
// -50% negative); both directions are updated identically and capped at 1.
func (s *System) Link(concept1, concept2 string, ctx *ActionContext, weight float64) {
	c1 := s.GetOrCreate(concept1, nil)
	c2 := s.GetOrCreate(concept2, nil)

	result := s.governance.ApplyLaw(c1, ctx, ActionLink)

	mod := 1.0
	switch result.Outcome {
	case OutcomePositive:
		mod = 1.5
	case OutcomeNegative:
		mod = 0.5
	}

	delta := weight * mod
	c1.Connections[c2.ID] = min(1.0, c1.Connections[c2.ID]+delta)
	c2.Connections[c1.ID] = min(1.0, c2.Connections[c1.ID]+delta)

	s.pathwayHistory[pathwayKey(concept1, concept2)]++
}

// AddInternalLayer embeds one crystal inside a QUASI host and strengthens
// the host's RECURSION law. Returns an error for non-QUASI hosts.
func (s *System) AddInternalLayer(hostConcept, layerConcept string) error {
	host := s.Get(hostConcept)
	if host == nil {
		return fmt.Errorf("no crystal for concept %q", hostConcept)
	}
	if host.Level != LevelQuasi {
		return fmt.Errorf("crystal %q is %s, only QUASI crystals hold internal layers", hostConcept, host.Level)
	}

	layer := s.GetOrCreate(layerConcept, nil)
	host.InternalLayers = append(host.InternalLayers, layer.ID)

	if f := host.FacetByRole(internalLawPrefix + "_RECURSION"); f != nil {
		f.Strengthen(0.5)
	}
	return nil
}

// DecayAll applies decay to every facet of every crystal, then runs a
// pattern-recognition pass once the lattice is big enough.
func (s *System) DecayAll() {
	for _, c := range s.crystals {
		for _, f := range c.Facets {
			f.Decay(0.005)
		}
	}

	if len(s.crystals) > 10 {
		s.detectRecurringPatterns()
	}
}

// detectRecurringPatterns finds crystals sharing the same top-3 connection
// signature. A signature seen three or more times spawns an abstracted
// concept crystal linked back to every source.
func (s *System) detectRecurringPatterns() {
	signatures := make(map[string][]string)

	for _, c := range s.crystals {
		if len(c.Connections) < 2 {
			continue
		}

		var connected []string
		for id := range c.Connections {
			if other, ok := s.crystals[id]; ok {
				connected = append(connected, other.Concept)
			}
		}
		if len(connected) < 2 {
			continue
		}

		sort.Strings(connected)
		if len(connected) > 3 {
			connected = connected[:3]
		}
		key := strings.Join(connected, "_")
		signatures[key] = append(signatures[key], c.Concept)
	}

	for key, concepts := range signatures {
		if len(concepts) < 3 {
			continue
		}
		s.recurringPatterns[key] = len(concepts)
		if _, ok := s.abstractedConcepts[key]; !ok {
			s.createAbstractedConcept(key, concepts)
		}
	}
}

func (s *System) createAbstractedConcept(patternKey string, sources []string) {
	name := "ABSTRACT_" + patternKey
	if len(name) > 39 {
		name = name[:39]
	}

	if s.Get(name) != nil {
		return
	}

	abstract := s.GetOrCreate(name, nil)
	abstract.AddFacet("abstraction",
		fmt.Sprintf("Generalized pattern from %d instances", len(sources)), 0.8)

	for _, source := range sources {
		s.Link(name, source, &ActionContext{NewPattern: true}, 0.3)
	}

	s.abstractedConcepts[patternKey] = sources
	s.logger.Info("abstracted concept created", zap.String("concept", name))
}

// Stats is an aggregate view over the whole crystal lattice.
type Stats struct {
	TotalCrystals      int            `json:"total_crystals"`
	CrystalsCreated    int            `json:"crystals_created"`
	TotalEvolutions    int            `json:"total_evolutions"`
	LevelDistribution  map[string]int `json:"level_distribution"`
	RelicFacets        int            `json:"relic_facets"`
	RecurringPatterns  int            `json:"recurring_patterns"`
	AbstractedConcepts int            `json:"abstracted_concepts"`
}

// GetStats returns aggregate counts over the lattice.
func (s *System) GetStats() Stats {
	levels := make(map[string]int, len(s.levelCounts))
	for level, count := range s.levelCounts {
		levels[level.String()] = count
	}

	relics := 0
	for _, c := range s.crystals {
		for _, f := range c.Facets {
			if f.State == FacetStateRelic {
				relics++
			}
		}
	}

	return Stats{
		TotalCrystals:      len(s.crystals),
		CrystalsCreated:    s.totalCreated,
		TotalEvolutions:    s.totalEvolutions,
		LevelDistribution:  levels,
		RelicFacets:        relics,
		RecurringPatterns:  len(s.recurringPatterns),
		AbstractedConcepts: len(s.abstractedConcepts),
	}
}

func pathwayKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
