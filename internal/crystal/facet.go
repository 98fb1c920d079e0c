package crystal

import (
	"math/rand"
	"time"
)

// FacetState is the non-destructive lifecycle state of a facet.
// Decay only ever moves a facet forward (ACTIVE -> DECAYING -> RELIC);
// any strengthen resets it to ACTIVE. RELIC facets keep their role and
// content forever.
type FacetState string

const (
	FacetStateActive   FacetState = "ACTIVE"
	FacetStateDecaying FacetState = "DECAYING"
	FacetStateRelic    FacetState = "RELIC"
)

// EmotionState is the last emotion derived for a facet by the energy layer.
type EmotionState struct {
	Primary   string  `json:"primary"`
	Intensity float64 `json:"intensity"`
	Valence   float64 `json:"valence"`
	Arousal   float64 `json:"arousal"`
	Momentum  float64 `json:"momentum"`
}

// Facet is an atomic knowledge fragment owned by a crystal. Its eight
// character points interact with each other: strengthening pushes
// correlated points up, decay drags related points down.
type Facet struct {
	ID           string
	CrystalID    string
	Role         string
	Content      any
	Confidence   float64
	AccessCount  int
	LastAccessed time.Time
	State        FacetState

	Resonance    float64
	Sensitivity  float64
	Abstractness float64
	Potential    float64
	Stability    float64
	Coherence    float64
	Complexity   float64
	Frequency    float64

	Emotion EmotionState
}

func newFacet(id, crystalID, role string, content any, confidence float64) *Facet {
	return &Facet{
		ID:           id,
		CrystalID:    crystalID,
		Role:         role,
		Content:      content,
		Confidence:   confidence,
		LastAccessed: time.Now(),
		State:        FacetStateActive,
		Resonance:    rand.Float64(),
		Sensitivity:  rand.Float64(),
		Abstractness: rand.Float64(),
		Potential:    rand.Float64(),
		Stability:    rand.Float64(),
		Coherence:    rand.Float64(),
		Complexity:   rand.Float64(),
		Frequency:    rand.Float64(),
	}
}

// Strengthen raises confidence (clamped to 1.0), bumps access stats and
// revives the facet to ACTIVE regardless of its current state.
func (f *Facet) Strengthen(amount float64) {
	f.Confidence = min(1.0, f.Confidence+amount)
	f.AccessCount++
	f.LastAccessed = time.Now()
	f.State = FacetStateActive
	f.updatePhysics(true)
}

// Decay reduces confidence scaled by elapsed idle time. RELIC facets are
// untouched. State transitions are one-directional and idempotent:
// confidence < 0.3 -> DECAYING, < 0.1 -> RELIC.
func (f *Facet) Decay(rate float64) {
	if f.State == FacetStateRelic {
		return
	}

	elapsed := time.Since(f.LastAccessed).Minutes()
	f.Confidence = max(0.0, f.Confidence-rate*elapsed)
	f.updatePhysics(false)

	if f.Confidence < 0.3 {
		f.State = FacetStateDecaying
	}
	if f.Confidence < 0.1 {
		f.State = FacetStateRelic
	}
}

// updatePhysics applies the interdependence between character points.
// Coherence props up stability, potential feeds resonance, and losing
// stability erodes coherence in turn.
func (f *Facet) updatePhysics(boost bool) {
	if boost {
		if f.Coherence > 0.7 {
			f.Stability = min(1.0, f.Stability+0.05)
		}
		if f.Potential > 0.7 {
			f.Resonance = min(1.0, f.Resonance+0.05)
		}
		if f.Complexity > 0.8 {
			f.Abstractness = max(0.0, f.Abstractness-0.03)
		}
		return
	}

	if f.Stability < 0.3 {
		f.Coherence = max(0.0, f.Coherence-0.03)
	}
	if f.Complexity > 0.7 {
		f.Frequency = max(0.0, f.Frequency-0.02)
	}
}

// Points returns the 8-dimensional character vector in a fixed order:
// resonance, sensitivity, abstractness, potential, stability, coherence,
// complexity, frequency.
func (f *Facet) Points() [8]float64 {
	return [8]float64{
		f.Resonance, f.Sensitivity, f.Abstractness, f.Potential,
		f.Stability, f.Coherence, f.Complexity, f.Frequency,
	}
}

// Active reports whether the facet is in the ACTIVE state.
func (f *Facet) Active() bool {
	return f.State == FacetStateActive
}
