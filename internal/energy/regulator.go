// Package energy implements the physics core: a bounded, decaying energy
// field over registered facets, linked by 8-point character similarity.
//
// Locking is partitioned by concern (energy map, link table, facet
// registry) so reads of one never block writes to another. Phases of a
// step work on snapshots copied under one lock at a time; locks are never
// held nested.
package energy

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/trinity/internal/crystal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config tunes the physics engine.
type Config struct {
	// ConservationLimit is the total-energy budget enforced each step.
	ConservationLimit float64
	// BaseDecayRate scales the per-step multiplicative decay.
	BaseDecayRate float64
	// DispersalFraction of a facet's energy flows out along links per step.
	DispersalFraction float64
	// TopK caps how many similarity links each facet keeps.
	TopK int
	// LinkFloor is the minimum cosine similarity kept as a link.
	LinkFloor float64
	// CuriosityEnabled turns the stochastic exploration boost on.
	CuriosityEnabled bool
}

// DefaultConfig returns the standard physics tuning.
func DefaultConfig() Config {
	return Config{
		ConservationLimit: 50.0,
		BaseDecayRate:     0.1,
		DispersalFraction: 0.3,
		TopK:              8,
		LinkFloor:         0.1,
		CuriosityEnabled:  true,
	}
}

// Personality holds long-term trait biases that color emotional responses.
type Personality struct {
	Openness          float64 `yaml:"openness"`
	Conscientiousness float64 `yaml:"conscientiousness"`
	Extraversion      float64 `yaml:"extraversion"`
	Agreeableness     float64 `yaml:"agreeableness"`
	Neuroticism       float64 `yaml:"neuroticism"`
}

// DefaultPersonality is neutral on every trait.
func DefaultPersonality() Personality {
	return Personality{0.5, 0.5, 0.5, 0.5, 0.5}
}

// GlobalEmotion is the system-wide dominant emotion summary.
type GlobalEmotion struct {
	Primary   string  `json:"primary"`
	Intensity float64 `json:"intensity"`
}

// FacetEnergy is one entry of a snapshot, sorted descending by energy.
type FacetEnergy struct {
	FacetID string               `json:"facet_id"`
	Energy  float64              `json:"energy"`
	Emotion crystal.EmotionState `json:"emotion"`
}

// Diagnostics is a read-only view of the temporal dynamics.
type Diagnostics struct {
	Presence             float64       `json:"presence"`
	PresenceVelocity     float64       `json:"presence_velocity"`
	PresenceAcceleration float64       `json:"presence_acceleration"`
	TemporalStability    float64       `json:"temporal_stability"`
	EmotionalCoherence   float64       `json:"emotional_coherence"`
	MomentumState        string        `json:"momentum_state"`
	GlobalEmotion        GlobalEmotion `json:"global_emotion"`
}

// ErrUnregisteredFacet is returned when a nil or id-less facet is registered.
var ErrUnregisteredFacet = errors.New("facet must have an id to be registered")

type energyVector struct {
	valence, arousal, tension float64
}

// Regulator is the shared physics engine. Registration, injection and
// snapshots are safe to call concurrently; Step assumes a single stepper.
type Regulator struct {
	cfg    Config
	logger *zap.Logger

	// energyMu also guards the presence/momentum/emotion summary state,
	// which inject and snapshot read.
	energyMu sync.RWMutex
	energy   map[string]float64

	linkMu sync.RWMutex
	links  map[string]map[string]float64

	facetMu sync.RWMutex
	facets  map[string]*crystal.Facet

	personality Personality

	presenceScale      float64
	lastTick           time.Time
	temporalStability  float64
	emotionalCoherence float64

	presenceHistory      []float64
	presenceVelocity     float64
	presenceAcceleration float64

	emotionalMomentum map[string]map[string]float64
	globalEmotion     GlobalEmotion
	emotionalHistory  []GlobalEmotion

	vectorEnergy map[string]energyVector
}

// NewRegulator creates a regulator with full presence and an empty field.
func NewRegulator(cfg Config, logger *zap.Logger) *Regulator {
	return &Regulator{
		cfg:                cfg,
		logger:             logger,
		energy:             make(map[string]float64),
		links:              make(map[string]map[string]float64),
		facets:             make(map[string]*crystal.Facet),
		personality:        DefaultPersonality(),
		presenceScale:      1.0,
		lastTick:           time.Now(),
		temporalStability:  1.0,
		emotionalCoherence: 1.0,
		emotionalMomentum:  make(map[string]map[string]float64),
		globalEmotion:      GlobalEmotion{Primary: "neutral"},
		vectorEnergy:       make(map[string]energyVector),
	}
}

// SetPersonality replaces the trait biases used by the emotion engine.
func (r *Regulator) SetPersonality(p Personality) {
	r.energyMu.Lock()
	r.personality = p
	r.energyMu.Unlock()
}

// RegisterFacet starts energy tracking for one facet and rebuilds its
// similarity links. Safe for concurrent use.
func (r *Regulator) RegisterFacet(f *crystal.Facet) error {
	if f == nil || f.ID == "" {
		return ErrUnregisteredFacet
	}

	r.facetMu.Lock()
	r.facets[f.ID] = f
	r.facetMu.Unlock()

	r.energyMu.Lock()
	if _, ok := r.energy[f.ID]; !ok {
		r.energy[f.ID] = f.Confidence * 0.01
	}
	r.energyMu.Unlock()

	r.updateLinksForFacet(f.ID)
	return nil
}

// RegisterCrystal registers every facet of a crystal in parallel.
// Registration only touches disjoint per-facet entries, so order does not
// matter.
func (r *Regulator) RegisterCrystal(c *crystal.Crystal) error {
	var g errgroup.Group
	g.SetLimit(4)
	for _, f := range c.Facets {
		f := f
		g.Go(func() error {
			return r.RegisterFacet(f)
		})
	}
	return g.Wait()
}

// updateLinksForFacet recomputes the top-K cosine-similarity links from one
// facet to the rest of the registry, renormalized to sum to 1.
func (r *Regulator) updateLinksForFacet(facetID string) {
	type scored struct {
		id    string
		score float64
	}

	r.facetMu.RLock()
	src, ok := r.facets[facetID]
	if !ok {
		r.facetMu.RUnlock()
		return
	}
	srcVec := src.Points()

	var candidates []scored
	for otherID, other := range r.facets {
		if otherID == facetID {
			continue
		}
		score := cosineSimilarity(srcVec, other.Points())
		if score > r.cfg.LinkFloor {
			candidates = append(candidates, scored{otherID, score})
		}
	}
	r.facetMu.RUnlock()

	if len(candidates) == 0 {
		return
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > r.cfg.TopK {
		candidates = candidates[:r.cfg.TopK]
	}

	total := 1e-12
	for _, c := range candidates {
		total += c.score
	}

	weights := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		weights[c.id] = c.score / total
	}

	r.linkMu.Lock()
	r.links[facetID] = weights
	r.linkMu.Unlock()
}

// InjectEnergy adds energy to one facet, dampened toward 30% of the raw
// amount when the system is dissociated. O(1) under the energy lock.
func (r *Regulator) InjectEnergy(facetID string, amount float64) {
	r.energyMu.Lock()
	effective := amount * (0.3 + 0.7*r.presenceScale)
	r.energy[facetID] += effective
	r.energyMu.Unlock()
}

// InjectEnergyVector injects into the 3D valence/arousal/tension space; the
// facet's scalar energy becomes the vector magnitude.
func (r *Regulator) InjectEnergyVector(facetID string, valence, arousal, tension float64) {
	r.energyMu.Lock()
	defer r.energyMu.Unlock()

	mod := 0.3 + 0.7*r.presenceScale
	vec := r.vectorEnergy[facetID]
	vec.valence += valence * mod
	vec.arousal += arousal * mod
	vec.tension += tension * mod
	r.vectorEnergy[facetID] = vec

	r.energy[facetID] = math.Sqrt(vec.valence*vec.valence + vec.arousal*vec.arousal + vec.tension*vec.tension)
}

// Snapshot returns the presence scale and the top-N energized facets sorted
// descending. A snapshot taken during a step reflects either the pre- or
// post-step field, never a torn one.
func (r *Regulator) Snapshot(topN int) (float64, []FacetEnergy) {
	r.energyMu.RLock()
	presence := r.presenceScale
	entries := make([]FacetEnergy, 0, len(r.energy))
	for id, e := range r.energy {
		entries = append(entries, FacetEnergy{FacetID: id, Energy: e})
	}
	r.energyMu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Energy > entries[j].Energy
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}

	r.facetMu.RLock()
	result := make([]FacetEnergy, 0, len(entries))
	for _, entry := range entries {
		f, ok := r.facets[entry.FacetID]
		if !ok {
			continue
		}
		entry.Emotion = f.Emotion
		result = append(result, entry)
	}
	r.facetMu.RUnlock()

	return presence, result
}

// TotalEnergy sums the whole field.
func (r *Regulator) TotalEnergy() float64 {
	r.energyMu.RLock()
	defer r.energyMu.RUnlock()

	total := 0.0
	for _, e := range r.energy {
		total += e
	}
	return total
}

// Diagnostics reports the temporal dynamics and global emotion.
func (r *Regulator) Diagnostics() Diagnostics {
	r.energyMu.RLock()
	defer r.energyMu.RUnlock()

	return Diagnostics{
		Presence:             r.presenceScale,
		PresenceVelocity:     r.presenceVelocity,
		PresenceAcceleration: r.presenceAcceleration,
		TemporalStability:    r.temporalStability,
		EmotionalCoherence:   r.emotionalCoherence,
		MomentumState:        r.classifyMomentum(),
		GlobalEmotion:        r.globalEmotion,
	}
}

// classifyMomentum labels the presence dynamics. Caller holds energyMu.
func (r *Regulator) classifyMomentum() string {
	switch {
	case math.Abs(r.presenceAcceleration) > 0.1:
		if r.presenceAcceleration > 0 {
			return "ACCELERATING_ENGAGEMENT"
		}
		return "ACCELERATING_DISSOCIATION"
	case math.Abs(r.presenceVelocity) > 0.05:
		if r.presenceVelocity > 0 {
			return "RISING_PRESENCE"
		}
		return "FADING_PRESENCE"
	default:
		return "STABLE"
	}
}

func cosineSimilarity(a, b [8]float64) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	return dot / (math.Sqrt(magA)*math.Sqrt(magB) + 1e-12)
}
