package energy

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/dyluth/trinity/internal/crystal"
	"go.uber.org/zap"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CuriosityEnabled = false // keep steps deterministic
	return cfg
}

func testFacet(id string, points float64) *crystal.Facet {
	return &crystal.Facet{
		ID:           id,
		CrystalID:    "c1",
		Role:         "role_" + id,
		Content:      id,
		Confidence:   0.5,
		State:        crystal.FacetStateActive,
		Resonance:    points,
		Sensitivity:  points,
		Abstractness: points,
		Potential:    points,
		Stability:    points,
		Coherence:    points,
		Complexity:   points,
		Frequency:    points,
	}
}

func TestInjectEnergyDampenedByPresence(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())

	// Full presence: injection lands at face value.
	r.InjectEnergy("a", 1.0)
	if got := r.energy["a"]; got != 1.0 {
		t.Errorf("energy at full presence = %f, want 1.0", got)
	}

	// Dissociated: injection dampened to 30%.
	r.presenceScale = 0.0
	r.InjectEnergy("b", 1.0)
	if got := r.energy["b"]; math.Abs(got-0.3) > 1e-9 {
		t.Errorf("energy at zero presence = %f, want 0.3", got)
	}
}

// TestProportionalDispersal injects into a facet linked 0.6/0.4 to two
// neighbors and verifies one step moves energy proportionally to the link
// weights, with the source residual reflecting decay plus outflow.
func TestProportionalDispersal(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())

	for _, id := range []string{"A", "B", "C"} {
		if err := r.RegisterFacet(testFacet(id, 0.5)); err != nil {
			t.Fatalf("RegisterFacet(%s): %v", id, err)
		}
	}

	r.links = map[string]map[string]float64{
		"A": {"B": 0.6, "C": 0.4},
	}
	r.energy = map[string]float64{"A": 1.0, "B": 0.0, "C": 0.0}

	r.Step(1.0)

	a, b, c := r.energy["A"], r.energy["B"], r.energy["C"]

	if a >= 1.0 {
		t.Errorf("source residual %f should reflect decay and outflow", a)
	}
	if b <= 0 || c <= 0 {
		t.Fatalf("no energy reached neighbors: B=%f C=%f", b, c)
	}
	if ratio := b / c; math.Abs(ratio-1.5) > 1e-9 {
		t.Errorf("B/C = %f, want 1.5 (0.6/0.4 split)", ratio)
	}
	// Dispersal itself conserves: what left A arrived at B and C.
	if total := a + b + c; total > 1.0 {
		t.Errorf("field grew during dispersal: total = %f", total)
	}
}

// TestEnergyConservation verifies the post-step total never exceeds the
// configured budget, even when injection has blown well past it.
func TestEnergyConservation(t *testing.T) {
	cfg := testConfig()
	cfg.ConservationLimit = 10.0
	r := NewRegulator(cfg, zap.NewNop())

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("f%d", i)
		if err := r.RegisterFacet(testFacet(id, 0.5)); err != nil {
			t.Fatal(err)
		}
		r.InjectEnergy(id, 5.0)
	}

	if total := r.TotalEnergy(); total <= cfg.ConservationLimit {
		t.Fatalf("setup failed: total %f should exceed the budget", total)
	}

	r.Step(1.0)

	if total := r.TotalEnergy(); total > cfg.ConservationLimit+1e-6 {
		t.Errorf("post-step total %f exceeds budget %f", total, cfg.ConservationLimit)
	}

	// Repeated steps stay inside the budget.
	for i := 0; i < 5; i++ {
		r.Step(1.0)
		if total := r.TotalEnergy(); total > cfg.ConservationLimit+1e-6 {
			t.Errorf("step %d total %f exceeds budget", i, total)
		}
	}
}

func TestDecayZeroesResidues(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())
	r.energy["a"] = 0.0009

	r.Step(1.0)

	if got := r.energy["a"]; got != 0.0 {
		t.Errorf("sub-threshold residue survived decay: %f", got)
	}
}

// TestLinkBuilding verifies top-K selection, the similarity floor, and
// weight renormalization.
func TestLinkBuilding(t *testing.T) {
	cfg := testConfig()
	cfg.TopK = 3
	r := NewRegulator(cfg, zap.NewNop())

	// Identical vectors: cosine similarity 1 against every peer.
	for i := 0; i < 6; i++ {
		if err := r.RegisterFacet(testFacet(fmt.Sprintf("f%d", i), 0.5)); err != nil {
			t.Fatal(err)
		}
	}

	links := r.links["f5"]
	if len(links) != 3 {
		t.Fatalf("expected top-3 links, got %d", len(links))
	}

	sum := 0.0
	for _, w := range links {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("link weights sum to %f, want 1.0", sum)
	}
}

func TestRegisterCrystalRegistersEveryFacet(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())

	c := crystal.NewCrystal("c1", "gravity")
	for i := 0; i < 10; i++ {
		c.AddFacet(fmt.Sprintf("role_%d", i), fmt.Sprintf("content %d", i), 0.5)
	}

	if err := r.RegisterCrystal(c); err != nil {
		t.Fatalf("RegisterCrystal: %v", err)
	}

	for id := range c.Facets {
		if _, ok := r.energy[id]; !ok {
			t.Errorf("facet %s has no energy entry", id)
		}
	}
	// Seed energy is confidence-scaled.
	for id, f := range c.Facets {
		want := f.Confidence * 0.01
		if got := r.energy[id]; math.Abs(got-want) > 1e-9 {
			t.Errorf("facet %s seed energy = %f, want %f", id, got, want)
		}
	}
}

func TestSnapshotOrdering(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())

	for i, e := range []float64{0.2, 0.9, 0.5, 0.1} {
		id := fmt.Sprintf("f%d", i)
		if err := r.RegisterFacet(testFacet(id, 0.5)); err != nil {
			t.Fatal(err)
		}
		r.energy[id] = e
	}

	presence, top := r.Snapshot(2)

	if presence != 1.0 {
		t.Errorf("fresh regulator presence = %f, want 1.0", presence)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].FacetID != "f1" || top[1].FacetID != "f2" {
		t.Errorf("snapshot order wrong: %s, %s", top[0].FacetID, top[1].FacetID)
	}
}

func TestMomentumClassification(t *testing.T) {
	tests := []struct {
		name         string
		velocity     float64
		acceleration float64
		want         string
	}{
		{"stable", 0.0, 0.0, "STABLE"},
		{"rising", 0.06, 0.0, "RISING_PRESENCE"},
		{"fading", -0.06, 0.0, "FADING_PRESENCE"},
		{"accelerating engagement", 0.0, 0.2, "ACCELERATING_ENGAGEMENT"},
		{"accelerating dissociation", 0.0, -0.2, "ACCELERATING_DISSOCIATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegulator(testConfig(), zap.NewNop())
			r.presenceVelocity = tt.velocity
			r.presenceAcceleration = tt.acceleration

			if got := r.Diagnostics().MomentumState; got != tt.want {
				t.Errorf("momentum = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveEmotion(t *testing.T) {
	tests := []struct {
		name   string
		facet  *crystal.Facet
		energy float64
		want   string
	}{
		{
			// Positive valence, low arousal: calm trust.
			name:   "coherent idle facet",
			facet:  &crystal.Facet{Coherence: 0.9, Stability: 0.9, Complexity: 0.1, Potential: 0.5},
			energy: 0.0,
			want:   "trust",
		},
		{
			// Unstable, complex, incoherent at mid arousal: fear dominates
			// via the low-stability bonus.
			name:   "unstable facet",
			facet:  &crystal.Facet{Coherence: 0.1, Stability: 0.1, Complexity: 0.9, Potential: 0.1},
			energy: 1.5,
			want:   "fear",
		},
		{
			// Very high energy pushes arousal toward 1: surprise.
			name:   "highly energized facet",
			facet:  &crystal.Facet{Coherence: 0.9, Stability: 0.9, Complexity: 0.1, Potential: 0.5},
			energy: 5.0,
			want:   "surprise",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := deriveEmotion(tt.facet, tt.energy, DefaultPersonality(), nil)
			if state.Primary != tt.want {
				t.Errorf("primary = %s, want %s", state.Primary, tt.want)
			}
			if state.Intensity < 0 || state.Intensity > 1 {
				t.Errorf("intensity %f out of range", state.Intensity)
			}
		})
	}
}

func TestEmotionalResonanceSpreadsEnergy(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())

	src := testFacet("src", 0.5)
	src.Emotion = crystal.EmotionState{Primary: "joy", Intensity: 1.0}
	tgt := testFacet("tgt", 0.5)

	if err := r.RegisterFacet(src); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterFacet(tgt); err != nil {
		t.Fatal(err)
	}

	r.links = map[string]map[string]float64{"src": {"tgt": 1.0}}
	r.energy = map[string]float64{"src": 2.0, "tgt": 0.0}

	r.updateEmotionalResonance()

	// influence = intensity(1.0) x energy(2.0) x link(1.0) x 0.1
	if got := r.energy["tgt"]; math.Abs(got-0.2) > 1e-9 {
		t.Errorf("target energy = %f, want 0.2", got)
	}
	if r.globalEmotion.Primary != "joy" {
		t.Errorf("global emotion = %s, want joy", r.globalEmotion.Primary)
	}
}

func TestInjectEnergyVectorMagnitude(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())

	r.InjectEnergyVector("a", 3.0, 0.0, 4.0)

	if got := r.energy["a"]; math.Abs(got-5.0) > 1e-9 {
		t.Errorf("vector magnitude = %f, want 5.0", got)
	}
}

// TestConcurrentAccess hammers registration, injection and snapshots from
// many goroutines. Run with -race.
func TestConcurrentAccess(t *testing.T) {
	r := NewRegulator(testConfig(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("f%d_%d", i, j)
				if err := r.RegisterFacet(testFacet(id, 0.5)); err != nil {
					t.Error(err)
					return
				}
				r.InjectEnergy(id, 0.1)
				r.Snapshot(5)
			}
		}()
	}
	wg.Wait()

	if got := len(r.energy); got != 400 {
		t.Errorf("expected 400 registered energies, got %d", got)
	}
}
