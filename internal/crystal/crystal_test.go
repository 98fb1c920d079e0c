package crystal

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestSystem() *System {
	engine := NewEngine("test")
	engine.ChaosChance = 0 // deterministic outcomes
	return NewSystem(engine, zap.NewNop())
}

// TestFacetStateTransitions verifies the one-directional
// ACTIVE -> DECAYING -> RELIC lifecycle driven by confidence thresholds.
func TestFacetStateTransitions(t *testing.T) {
	f := newFacet("f1", "c1", "definition", "some content", 0.5)

	// An hour idle at rate 0.005 removes 0.3 confidence.
	f.LastAccessed = time.Now().Add(-60 * time.Minute)
	f.Decay(0.005)

	if f.State != FacetStateDecaying {
		t.Errorf("expected DECAYING after first decay, got %s", f.State)
	}

	f.LastAccessed = time.Now().Add(-60 * time.Minute)
	f.Decay(0.005)

	if f.State != FacetStateRelic {
		t.Errorf("expected RELIC after second decay, got %s", f.State)
	}

	// RELIC facets no longer decay, and role/content survive forever.
	before := f.Confidence
	f.Decay(0.005)
	if f.Confidence != before {
		t.Errorf("RELIC facet decayed: %f -> %f", before, f.Confidence)
	}
	if f.Role != "definition" || f.Content != "some content" {
		t.Error("role or content changed under decay")
	}
}

// TestFacetRevival verifies that strengthen resets any state to ACTIVE.
func TestFacetRevival(t *testing.T) {
	f := newFacet("f1", "c1", "definition", "content", 0.05)
	f.State = FacetStateRelic

	f.Strengthen(0.1)

	if f.State != FacetStateActive {
		t.Errorf("expected ACTIVE after strengthen, got %s", f.State)
	}
	if f.AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", f.AccessCount)
	}
}

func TestFacetConfidenceClamped(t *testing.T) {
	f := newFacet("f1", "c1", "r", "x", 0.95)
	f.Strengthen(0.2)
	if f.Confidence != 1.0 {
		t.Errorf("expected confidence clamped to 1.0, got %f", f.Confidence)
	}
}

// TestAddFacetDeduplication verifies that adding a facet with an existing
// role or existing content strengthens the original instead of duplicating.
func TestAddFacetDeduplication(t *testing.T) {
	c := NewCrystal("c1", "gravity")

	first := c.AddFacet("definition", "pulls things down", 0.5)
	byRole := c.AddFacet("definition", "different text", 0.5)
	byContent := c.AddFacet("other_role", "pulls things down", 0.5)

	if byRole != first {
		t.Error("adding facet with duplicate role created a new facet")
	}
	if byContent != first {
		t.Error("adding facet with duplicate content created a new facet")
	}
	if len(c.Facets) != 1 {
		t.Errorf("expected 1 facet, got %d", len(c.Facets))
	}
	if first.AccessCount != 2 {
		t.Errorf("expected original strengthened twice, got access count %d", first.AccessCount)
	}
}

func TestEvolutionCriteriaThresholds(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		facets int
		usage  int
		want   bool
	}{
		{"base below facets", LevelBase, 2, 20, false},
		{"base below usage", LevelBase, 3, 9, false},
		{"base at threshold", LevelBase, 3, 10, true},
		{"composite at threshold", LevelComposite, 5, 25, true},
		{"composite below", LevelComposite, 4, 25, false},
		{"full concept at threshold", LevelFullConcept, 8, 50, true},
		{"full concept below usage", LevelFullConcept, 8, 49, false},
		{"quasi never evolves", LevelQuasi, 20, 500, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCrystal("c1", "test")
			c.Level = tt.level
			c.UsageCount = tt.usage
			for i := 0; i < tt.facets; i++ {
				c.AddFacet(fmt.Sprintf("role_%d", i), fmt.Sprintf("content %d", i), 0.5)
			}

			if got := c.CheckEvolutionCriteria(nil); got != tt.want {
				t.Errorf("CheckEvolutionCriteria() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEvolutionContextMultipliers verifies that high-impact context lowers
// the effective usage needed to evolve.
func TestEvolutionContextMultipliers(t *testing.T) {
	c := NewCrystal("c1", "test")
	c.UsageCount = 7
	for i := 0; i < 3; i++ {
		c.AddFacet(fmt.Sprintf("role_%d", i), i, 0.5)
	}

	if c.CheckEvolutionCriteria(nil) {
		t.Fatal("7 uses should not clear the BASE threshold without context")
	}
	// threat multiplier 1.5: 7 * 1.5 = 10.5 >= 10
	if !c.CheckEvolutionCriteria(&ActionContext{ThreatLevel: 0.9}) {
		t.Error("high threat context should boost effective usage past threshold")
	}
}

func TestEvolveIsNoOpBelowCriteria(t *testing.T) {
	c := NewCrystal("c1", "test")
	if c.Evolve() {
		t.Error("Evolve() on an empty BASE crystal should return false")
	}
	if c.Level != LevelBase {
		t.Errorf("level changed to %s without criteria", c.Level)
	}
}

// TestQuasiGeneratesInternalLaws verifies that evolving past FULL_CONCEPT
// yields exactly the eight internal-law facets with their tuned physics.
func TestQuasiGeneratesInternalLaws(t *testing.T) {
	c := NewCrystal("c1", "consciousness")
	c.Level = LevelFullConcept
	c.UsageCount = 50
	for i := 0; i < 8; i++ {
		c.AddFacet(fmt.Sprintf("role_%d", i), fmt.Sprintf("content %d", i), 0.5)
	}

	if !c.Evolve() {
		t.Fatal("expected evolution to QUASI")
	}
	if c.Level != LevelQuasi {
		t.Fatalf("expected QUASI, got %s", c.Level)
	}

	var lawRoles []string
	for _, f := range c.Facets {
		if strings.HasPrefix(f.Role, internalLawPrefix) {
			lawRoles = append(lawRoles, f.Role)
			if f.Confidence != 1.0 {
				t.Errorf("%s confidence = %f, want 1.0", f.Role, f.Confidence)
			}
		}
	}
	if len(lawRoles) != 8 {
		t.Fatalf("expected 8 internal-law facets, got %d", len(lawRoles))
	}
	for _, law := range Laws {
		want := internalLawPrefix + "_" + law
		if c.FacetByRole(want) == nil {
			t.Errorf("missing internal law facet %s", want)
		}
	}

	// Tuned physics biases.
	if f := c.FacetByRole("INTERNAL_LAW_ENERGY"); f.Stability != 0.9 || f.Potential != 1.0 {
		t.Errorf("ENERGY law tuning wrong: stability=%f potential=%f", f.Stability, f.Potential)
	}
	if f := c.FacetByRole("INTERNAL_LAW_CHAOS"); f.Stability != 0.1 || f.Frequency != 0.9 {
		t.Errorf("CHAOS law tuning wrong: stability=%f frequency=%f", f.Stability, f.Frequency)
	}

	// Internal laws never count toward future evolution criteria.
	if got := c.ExternalFacetCount(); got != 8 {
		t.Errorf("external facet count = %d, want 8", got)
	}
}

// TestInternalGovernanceHandoff verifies the QUASI self-governance law
// selection and its stability/potential driven outcome.
func TestInternalGovernanceHandoff(t *testing.T) {
	c := NewCrystal("c1", "test")
	c.Level = LevelFullConcept
	c.UsageCount = 51 // not a multiple of 10, avoids the CHAOS branch
	for i := 0; i < 8; i++ {
		c.AddFacet(fmt.Sprintf("role_%d", i), i, 0.5)
	}
	if !c.Evolve() {
		t.Fatal("expected evolution to QUASI")
	}

	tests := []struct {
		name string
		ctx  *ActionContext
		want string
	}{
		{"high threat", &ActionContext{ThreatLevel: 0.9}, "QUASI_COLLISION"},
		{"new pattern", &ActionContext{NewPattern: true}, "QUASI_CONSCIOUSNESS"},
		{"default", &ActionContext{}, "QUASI_ENERGY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.ApplyInternalGovernance(tt.ctx)
			if result.Law != tt.want {
				t.Errorf("law = %s, want %s", result.Law, tt.want)
			}
		})
	}

	// ENERGY law is stable (0.9) with full potential (1.0): positive outcome,
	// energy change 0.1.
	result := c.ApplyInternalGovernance(&ActionContext{})
	if result.Outcome != OutcomePositive {
		t.Errorf("ENERGY law outcome = %s, want positive", result.Outcome)
	}
}

func TestLinkSymmetry(t *testing.T) {
	s := newTestSystem()

	s.Link("fire", "heat", nil, 0.1)

	c1 := s.Get("fire")
	c2 := s.Get("heat")
	w1 := c1.Connections[c2.ID]
	w2 := c2.Connections[c1.ID]

	if w1 != w2 {
		t.Errorf("link weights asymmetric: %f vs %f", w1, w2)
	}
	if w1 == 0 {
		t.Error("link weight not recorded")
	}

	// Repeated linking strengthens monotonically and caps at 1.0.
	for i := 0; i < 50; i++ {
		s.Link("fire", "heat", nil, 0.1)
	}
	if got := c1.Connections[c2.ID]; got != 1.0 {
		t.Errorf("link weight = %f, want capped at 1.0", got)
	}
	if c1.Connections[c2.ID] != c2.Connections[c1.ID] {
		t.Error("link weights diverged after repeated linking")
	}
}

func TestGetOrCreateCaseInsensitive(t *testing.T) {
	s := newTestSystem()

	c1 := s.GetOrCreate("Gravity", nil)
	c2 := s.GetOrCreate("gravity", nil)

	if c1 != c2 {
		t.Error("concept lookup should be case-insensitive")
	}
	if s.GetStats().TotalCrystals != 1 {
		t.Errorf("expected 1 crystal, got %d", s.GetStats().TotalCrystals)
	}
}

// TestUseReachesQuasi drives a crystal through all evolution levels: 8
// distinct facet roles plus 50 governed uses ends at QUASI with 16 facets.
func TestUseReachesQuasi(t *testing.T) {
	s := newTestSystem()

	c := s.GetOrCreate("X", nil)
	for i := 0; i < 8; i++ {
		c.AddFacet(fmt.Sprintf("role_%d", i), fmt.Sprintf("content %d", i), 0.5)
	}

	for i := 0; i < 50; i++ {
		s.Use("X", nil)
	}

	if c.Level != LevelQuasi {
		t.Fatalf("expected QUASI after 50 uses, got %s", c.Level)
	}
	if len(c.Facets) != 16 {
		t.Errorf("expected 16 facets (8 external + 8 laws), got %d", len(c.Facets))
	}

	stats := s.GetStats()
	if stats.TotalEvolutions != 3 {
		t.Errorf("expected 3 evolutions, got %d", stats.TotalEvolutions)
	}
	if stats.LevelDistribution["QUASI"] != 1 {
		t.Errorf("level distribution missing QUASI crystal: %v", stats.LevelDistribution)
	}
}

// TestLevelNeverDecreases runs well past every threshold and checks the
// level is monotone throughout.
func TestLevelNeverDecreases(t *testing.T) {
	s := newTestSystem()
	c := s.GetOrCreate("Y", nil)
	for i := 0; i < 8; i++ {
		c.AddFacet(fmt.Sprintf("role_%d", i), i, 0.5)
	}

	prev := c.Level
	for i := 0; i < 120; i++ {
		s.Use("Y", nil)
		if c.Level < prev {
			t.Fatalf("level decreased from %s to %s at use %d", prev, c.Level, i)
		}
		prev = c.Level
	}
}

func TestAddInternalLayer(t *testing.T) {
	s := newTestSystem()

	host := s.GetOrCreate("host", nil)
	if err := s.AddInternalLayer("host", "thought"); err == nil {
		t.Error("expected error embedding into a non-QUASI crystal")
	}

	host.Level = LevelFullConcept
	host.UsageCount = 50
	for i := 0; i < 8; i++ {
		host.AddFacet(fmt.Sprintf("role_%d", i), i, 0.5)
	}
	if !host.Evolve() {
		t.Fatal("expected evolution to QUASI")
	}

	if err := s.AddInternalLayer("host", "thought"); err != nil {
		t.Fatalf("AddInternalLayer failed: %v", err)
	}
	if len(host.InternalLayers) != 1 {
		t.Fatalf("expected 1 internal layer, got %d", len(host.InternalLayers))
	}
	// Layers are id references into the registry, not embedded copies.
	if s.GetByID(host.InternalLayers[0]) == nil {
		t.Error("internal layer id does not resolve in the registry")
	}
}

func TestGovernanceLawSelection(t *testing.T) {
	engine := NewEngine("test")
	engine.ChaosChance = 0
	c := NewCrystal("c1", "test")

	tests := []struct {
		name   string
		action Action
		ctx    *ActionContext
		want   string
	}{
		{"link is collision", ActionLink, nil, "COLLISION"},
		{"add facet is energy", ActionAddFacet, nil, "ENERGY"},
		{"use with new pattern", ActionUse, &ActionContext{NewPattern: true}, "CONSCIOUSNESS"},
		{"use with high threat", ActionUse, &ActionContext{ThreatLevel: 0.8}, "MOTION"},
		{"routine use", ActionUse, nil, "GOVERNANCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.ApplyLaw(c, tt.ctx, tt.action)
			if result.Law != tt.want {
				t.Errorf("law = %s, want %s", result.Law, tt.want)
			}
		})
	}
}
