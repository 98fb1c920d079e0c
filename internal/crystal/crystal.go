package crystal

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"time"
)

// Level is a crystal's evolution stage. Levels only ever increase.
type Level int

const (
	LevelBase Level = iota + 1
	LevelComposite
	LevelFullConcept
	LevelQuasi
)

func (l Level) String() string {
	switch l {
	case LevelBase:
		return "BASE"
	case LevelComposite:
		return "COMPOSITE"
	case LevelFullConcept:
		return "FULL_CONCEPT"
	case LevelQuasi:
		return "QUASI"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// internalLawPrefix marks the self-governance facets a crystal generates
// on reaching QUASI. They never count toward evolution thresholds.
const internalLawPrefix = "INTERNAL_LAW"

// Laws are the eight governance laws, in generation order.
var Laws = []string{
	"ENERGY", "MOTION", "COLLISION", "CHAOS",
	"CONSCIOUSNESS", "GOVERNANCE", "RECURSION", "SYMMETRY",
}

// Crystal is a named concept owning facets, weighted symmetric connections
// to other crystals, and an evolution level. QUASI crystals may embed other
// crystals as internal layers; layers are held by id only, the embedded
// crystal's lifecycle stays independent.
type Crystal struct {
	ID      string
	Concept string
	Level   Level

	Facets      map[string]*Facet
	Connections map[string]float64

	UsageCount int
	CreatedAt  time.Time
	LastUsed   time.Time

	InternalLayers []string
}

// NewCrystal creates a BASE-level crystal with no facets.
func NewCrystal(id, concept string) *Crystal {
	now := time.Now()
	return &Crystal{
		ID:          id,
		Concept:     concept,
		Level:       LevelBase,
		Facets:      make(map[string]*Facet),
		Connections: make(map[string]float64),
		CreatedAt:   now,
		LastUsed:    now,
	}
}

// AddFacet adds a facet, or strengthens and returns the existing one when a
// facet with the same role or the same content is already present.
func (c *Crystal) AddFacet(role string, content any, confidence float64) *Facet {
	for _, f := range c.Facets {
		if f.Role == role || reflect.DeepEqual(f.Content, content) {
			f.Strengthen(0.1)
			return f
		}
	}

	id := fmt.Sprintf("%s_facet_%d", c.ID, len(c.Facets))
	f := newFacet(id, c.ID, role, content, confidence)
	c.Facets[id] = f
	return f
}

// FacetByRole returns the ACTIVE facet with the given role, or nil.
func (c *Crystal) FacetByRole(role string) *Facet {
	for _, f := range c.Facets {
		if f.Role == role && f.State == FacetStateActive {
			return f
		}
	}
	return nil
}

// ExternalFacetCount counts facets that are not internal-law facets.
func (c *Crystal) ExternalFacetCount() int {
	n := 0
	for _, f := range c.Facets {
		if !strings.HasPrefix(f.Role, internalLawPrefix) {
			n++
		}
	}
	return n
}

// CheckEvolutionCriteria reports whether the crystal clears the facet and
// usage thresholds for its current level. High-impact context (threat,
// repeated stress, novelty) scales the effective usage count up.
func (c *Crystal) CheckEvolutionCriteria(ctx *ActionContext) bool {
	external := c.ExternalFacetCount()

	multiplier := 1.0
	if ctx != nil {
		if ctx.ThreatLevel > 0.8 {
			multiplier = 1.5
		}
		if ctx.StressCount > 3 {
			multiplier = 1.3
		}
		if ctx.NewPattern {
			multiplier = 1.2
		}
	}
	effectiveUsage := float64(c.UsageCount) * multiplier

	switch c.Level {
	case LevelBase:
		return external >= 3 && effectiveUsage >= 10
	case LevelComposite:
		return external >= 5 && effectiveUsage >= 25
	case LevelFullConcept:
		return external >= 8 && effectiveUsage >= 50
	}
	return false
}

// Evolve advances the crystal one level if the criteria hold, returning
// whether it evolved. Reaching QUASI generates the eight internal-law
// facets as a side effect.
func (c *Crystal) Evolve() bool {
	if !c.CheckEvolutionCriteria(nil) {
		return false
	}

	switch c.Level {
	case LevelBase:
		c.Level = LevelComposite
		return true
	case LevelComposite:
		c.Level = LevelFullConcept
		return true
	case LevelFullConcept:
		c.Level = LevelQuasi
		c.generateInternalLaws()
		return true
	}
	return false
}

// generateInternalLaws adds the eight self-governance facets, each tuned
// with the character biases of its law. Confidence 1.0: internal laws are
// absolute.
func (c *Crystal) generateInternalLaws() {
	for _, law := range Laws {
		f := c.AddFacet(
			internalLawPrefix+"_"+law,
			fmt.Sprintf("Internal governance protocol for %s", law),
			1.0,
		)
		switch law {
		case "ENERGY":
			f.Stability = 0.9
			f.Potential = 1.0
		case "CHAOS":
			f.Stability = 0.1
			f.Frequency = 0.9
		case "RECURSION":
			f.Complexity = 1.0
			f.Coherence = 0.8
		}
	}
}

// ApplyInternalGovernance lets a QUASI crystal govern itself by reading its
// own internal-law facets. The chosen law's stability and potential decide
// the outcome and the energy delta.
func (c *Crystal) ApplyInternalGovernance(ctx *ActionContext) LawResult {
	if c.Level != LevelQuasi {
		return LawResult{Law: "error", Outcome: OutcomeNegative}
	}

	law := "ENERGY"
	switch {
	case ctx != nil && ctx.ThreatLevel > 0.8:
		law = "COLLISION"
	case ctx != nil && ctx.NewPattern:
		law = "CONSCIOUSNESS"
	case c.UsageCount%10 == 0:
		law = "CHAOS"
	}

	facet := c.FacetByRole(internalLawPrefix + "_" + law)
	if facet == nil {
		facet = c.FacetByRole(internalLawPrefix + "_ENERGY")
	}
	if facet == nil {
		return LawResult{Law: "error", Outcome: OutcomeNegative}
	}

	outcome := OutcomeNeutral
	if facet.Stability > 0.7 && facet.Potential > 0.5 {
		outcome = OutcomePositive
	} else if facet.Stability < 0.3 {
		outcome = OutcomeNegative
	}

	return LawResult{
		Law:          "QUASI_" + law,
		Outcome:      outcome,
		EnergyChange: facet.Potential - facet.Stability,
	}
}

// Use records a governed use of the crystal. Positive outcomes reallocate
// energy toward every live facet, negative outcomes away; the resonance and
// stability points flicker slightly on each use.
func (c *Crystal) Use(result LawResult) {
	c.UsageCount++
	c.LastUsed = time.Now()

	for _, f := range c.Facets {
		if f.State == FacetStateRelic {
			continue
		}

		switch result.Outcome {
		case OutcomePositive:
			f.Strengthen(0.05)
		case OutcomeNegative:
			f.Confidence = max(0.0, f.Confidence-0.02)
		}

		f.Resonance = clamp01(f.Resonance + (rand.Float64()-0.5)*0.1)
		f.Stability = clamp01(f.Stability + (rand.Float64()-0.5)*0.1)
	}
}

func clamp01(v float64) float64 {
	return max(0.0, min(1.0, v))
}
