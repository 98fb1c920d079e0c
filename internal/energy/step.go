package energy

import (
	"math"
	"math/rand"
	"time"

	"github.com/dyluth/trinity/internal/crystal"
)

// Step runs one discrete physics tick. Phases execute in a fixed order and
// each operates on a snapshot of the relevant maps, so no facet sees
// another facet's same-tick update early.
func (r *Regulator) Step(dt float64) {
	// Phase 1-2: presence monitoring and momentum.
	now := time.Now()
	actualDt := now.Sub(r.lastTick).Seconds()
	r.lastTick = now

	drift := math.Abs(actualDt - dt)
	instantStability := math.Max(0.0, 1.0-math.Min(drift, 1.0))
	const alpha = 0.2

	r.energyMu.Lock()
	r.temporalStability = (1-alpha)*r.temporalStability + alpha*instantStability
	r.emotionalCoherence = r.coherenceLocked()
	r.presenceScale = 0.6*r.temporalStability + 0.4*r.emotionalCoherence

	r.presenceHistory = append(r.presenceHistory, r.presenceScale)
	if len(r.presenceHistory) > 5 {
		r.presenceHistory = r.presenceHistory[1:]
	}
	if n := len(r.presenceHistory); n >= 2 {
		r.presenceVelocity = r.presenceHistory[n-1] - r.presenceHistory[n-2]
		if n >= 3 {
			prevVelocity := r.presenceHistory[n-2] - r.presenceHistory[n-3]
			r.presenceAcceleration = r.presenceVelocity - prevVelocity
		}
	}

	// Phase 3: uniform decay across the whole field, slower when present.
	decay := r.cfg.BaseDecayRate * (0.2 + 0.8*math.Pow(r.presenceScale, 1.5))
	for id, e := range r.energy {
		e *= 1.0 - decay*dt
		if e < 0.001 {
			e = 0.0
		}
		r.energy[id] = e
	}
	presence := r.presenceScale
	r.energyMu.Unlock()

	// Phase 4: simultaneous dispersal along the link graph.
	r.batchDispersal(presence)

	// Phase 5: stochastic curiosity.
	if r.cfg.CuriosityEnabled && rand.Float64() < 0.1 {
		r.injectCuriosityEnergy()
	}

	// Phase 6: conservation budget.
	r.enforceBudget()

	// Phase 7: emotion derivation and propagation. Resonance injects
	// energy, so the budget is clamped once more afterwards.
	r.updateEmotionalResonance()
	r.enforceBudget()
	r.batchUpdateEmotions()
}

// coherenceLocked maps energy-field variance to [0,1] via a sigmoid.
// Caller holds energyMu.
func (r *Regulator) coherenceLocked() float64 {
	if len(r.energy) == 0 {
		return 1.0
	}

	mean := 0.0
	for _, e := range r.energy {
		mean += e
	}
	mean /= float64(len(r.energy))

	variance := 0.0
	for _, e := range r.energy {
		d := e - mean
		variance += d * d
	}
	variance /= float64(len(r.energy))

	return sigmoid(variance, 10.0, 0.05)
}

// batchDispersal moves energy along the link graph in one vectorized pass:
// outgoing = energy x fraction x presence (masked above a floor), incoming
// is the transposed adjacency applied to outgoing, and the whole field is
// updated at once.
func (r *Regulator) batchDispersal(presence float64) {
	r.linkMu.RLock()
	links := make(map[string]map[string]float64, len(r.links))
	for src, targets := range r.links {
		copied := make(map[string]float64, len(targets))
		for tgt, w := range targets {
			copied[tgt] = w
		}
		links[src] = copied
	}
	r.linkMu.RUnlock()

	if len(links) == 0 {
		return
	}

	r.energyMu.Lock()
	defer r.energyMu.Unlock()

	if len(r.energy) == 0 {
		return
	}

	ids := make([]string, 0, len(r.energy))
	index := make(map[string]int, len(r.energy))
	for id := range r.energy {
		index[id] = len(ids)
		ids = append(ids, id)
	}

	n := len(ids)
	adjacency := make([][]float64, n)
	for i := range adjacency {
		adjacency[i] = make([]float64, n)
	}
	for src, targets := range links {
		srcIdx, ok := index[src]
		if !ok {
			continue
		}
		for tgt, weight := range targets {
			if tgtIdx, ok := index[tgt]; ok {
				adjacency[srcIdx][tgtIdx] = weight
			}
		}
	}

	effective := r.cfg.DispersalFraction * presence

	outgoing := make([]float64, n)
	for i, id := range ids {
		if e := r.energy[id]; e > 0.1 {
			outgoing[i] = e * effective
		}
	}

	// incoming = adjacency^T . outgoing
	incoming := make([]float64, n)
	for i := range adjacency {
		if outgoing[i] == 0 {
			continue
		}
		for j, weight := range adjacency[i] {
			incoming[j] += weight * outgoing[i]
		}
	}

	for i, id := range ids {
		r.energy[id] = math.Max(0.0, r.energy[id]-outgoing[i]+incoming[i])
	}
}

// injectCuriosityEnergy boosts up to three under-energized ACTIVE facets.
func (r *Regulator) injectCuriosityEnergy() {
	r.facetMu.RLock()
	active := make(map[string]bool, len(r.facets))
	for id, f := range r.facets {
		active[id] = f.State == crystal.FacetStateActive
	}
	r.facetMu.RUnlock()

	r.energyMu.Lock()
	defer r.energyMu.Unlock()

	var underexplored []string
	for id, e := range r.energy {
		if e < 0.3 && active[id] {
			underexplored = append(underexplored, id)
		}
	}
	if len(underexplored) == 0 {
		return
	}

	rand.Shuffle(len(underexplored), func(i, j int) {
		underexplored[i], underexplored[j] = underexplored[j], underexplored[i]
	})
	count := min(3, len(underexplored))
	for _, id := range underexplored[:count] {
		r.energy[id] += (0.5 + rand.Float64()) * 0.05
	}
}

// enforceBudget uniformly rescales the field down when the conservation
// limit is exceeded.
func (r *Regulator) enforceBudget() {
	r.energyMu.Lock()
	defer r.energyMu.Unlock()

	total := 1e-9
	for _, e := range r.energy {
		total += e
	}
	if total <= r.cfg.ConservationLimit {
		return
	}

	scale := r.cfg.ConservationLimit / total
	for id := range r.energy {
		r.energy[id] *= scale
	}
}

func sigmoid(x, k, x0 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-k*(x-x0)))
}
