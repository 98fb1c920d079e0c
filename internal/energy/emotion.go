package energy

import (
	"math"

	"github.com/dyluth/trinity/internal/crystal"
	"golang.org/x/sync/errgroup"
)

// updateEmotionalResonance spreads emotional influence through the link
// graph (influence = source intensity x link weight x 0.1, applied when it
// clears 0.01) and recomputes the global dominant emotion from a weighted
// vote over the energized field.
func (r *Regulator) updateEmotionalResonance() {
	r.facetMu.RLock()
	emotions := make(map[string]crystal.EmotionState, len(r.facets))
	for id, f := range r.facets {
		emotions[id] = f.Emotion
	}
	r.facetMu.RUnlock()

	r.energyMu.RLock()
	energySnapshot := make(map[string]float64, len(r.energy))
	for id, e := range r.energy {
		energySnapshot[id] = e
	}
	r.energyMu.RUnlock()

	type fieldEntry struct {
		primary   string
		intensity float64
	}
	field := make(map[string]fieldEntry)
	for id, em := range emotions {
		if em.Primary != "" && energySnapshot[id] > 0.1 {
			field[id] = fieldEntry{
				primary:   em.Primary,
				intensity: em.Intensity * energySnapshot[id],
			}
		}
	}

	r.linkMu.RLock()
	influence := make(map[string]float64)
	for src, targets := range r.links {
		source, ok := field[src]
		if !ok {
			continue
		}
		for tgt, weight := range targets {
			if _, known := emotions[tgt]; !known {
				continue
			}
			if amount := source.intensity * weight * 0.1; amount > 0.01 {
				influence[tgt] += amount
			}
		}
	}
	r.linkMu.RUnlock()

	r.energyMu.Lock()
	for id, amount := range influence {
		r.energy[id] += amount
	}

	if len(field) > 0 {
		votes := make(map[string]float64)
		total := 0.0
		for _, entry := range field {
			votes[entry.primary] += entry.intensity
			total += entry.intensity
		}

		dominant := ""
		best := -1.0
		for em, weight := range votes {
			if weight > best {
				dominant, best = em, weight
			}
		}

		r.globalEmotion = GlobalEmotion{
			Primary:   dominant,
			Intensity: math.Min(1.0, best/(total+1e-6)),
		}
		r.emotionalHistory = append(r.emotionalHistory, r.globalEmotion)
		if len(r.emotionalHistory) > 10 {
			r.emotionalHistory = r.emotionalHistory[1:]
		}
	}
	r.energyMu.Unlock()
}

// batchUpdateEmotions recomputes every facet's emotion state in parallel.
// Each worker only writes its own facet's emotion and momentum entry.
func (r *Regulator) batchUpdateEmotions() {
	r.facetMu.RLock()
	facets := make([]*crystal.Facet, 0, len(r.facets))
	for _, f := range r.facets {
		facets = append(facets, f)
	}
	r.facetMu.RUnlock()

	if len(facets) == 0 {
		return
	}

	r.energyMu.RLock()
	energySnapshot := make(map[string]float64, len(r.energy))
	for id, e := range r.energy {
		energySnapshot[id] = e
	}
	personality := r.personality
	history := append([]GlobalEmotion(nil), r.emotionalHistory...)
	r.energyMu.RUnlock()

	results := make([]crystal.EmotionState, len(facets))

	var g errgroup.Group
	g.SetLimit(8)
	for i, f := range facets {
		i, f := i, f
		g.Go(func() error {
			results[i] = deriveEmotion(f, energySnapshot[f.ID], personality, history)
			return nil
		})
	}
	_ = g.Wait() // workers never return an error

	r.energyMu.Lock()
	for i, f := range facets {
		f.Emotion = results[i]

		momentum, ok := r.emotionalMomentum[f.ID]
		if !ok {
			momentum = make(map[string]float64)
			r.emotionalMomentum[f.ID] = momentum
		}
		primary := results[i].Primary
		momentum[primary] = momentum[primary]*0.9 + results[i].Intensity*0.1
	}
	r.energyMu.Unlock()
}

// deriveEmotion maps a facet's character points and energy to a Plutchik
// category with a personality-biased, momentum-boosted intensity.
func deriveEmotion(f *crystal.Facet, energy float64, p Personality, history []GlobalEmotion) crystal.EmotionState {
	valence := f.Coherence*0.4 + f.Stability*0.4 - f.Complexity*0.2
	valence = math.Max(-1.0, math.Min(1.0, valence))
	arousal := sigmoid(energy, 4.0, 1.5)

	primary := mapToPlutchik(valence, arousal, f)

	intensityBias := 1.0
	switch primary {
	case "fear", "sadness":
		intensityBias -= (p.Neuroticism - 0.5) * 0.4
	case "anger", "disgust":
		intensityBias -= (p.Neuroticism - 0.5) * 0.3
	case "joy":
		intensityBias += (p.Extraversion - 0.5) * 0.3
	case "trust":
		intensityBias += (p.Agreeableness - 0.5) * 0.25
	case "anticipation":
		intensityBias += (p.Openness - 0.5) * 0.2
	}

	momentumBoost := 0.0
	if len(history) > 0 {
		recent := history
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		repeats := 0
		for _, h := range recent {
			if h.Primary == primary {
				repeats++
			}
		}
		if repeats >= 2 {
			momentumBoost = 0.15
		}
	}

	return crystal.EmotionState{
		Primary:   primary,
		Intensity: math.Min(1.0, arousal*intensityBias+momentumBoost),
		Valence:   valence,
		Arousal:   arousal,
		Momentum:  momentumBoost,
	}
}

// mapToPlutchik scores the eight Plutchik categories from valence, arousal
// and the facet's potential/stability/complexity points, returning the
// highest scorer.
func mapToPlutchik(valence, arousal float64, f *crystal.Facet) string {
	scores := map[string]float64{
		"joy": 0, "trust": 0, "fear": 0, "surprise": 0,
		"sadness": 0, "disgust": 0, "anger": 0, "anticipation": 0,
	}

	if valence > 0 {
		scores["joy"] += valence * arousal
		scores["trust"] += valence * (1 - arousal)
		scores["anticipation"] += valence * 0.5
	} else {
		negV := -valence
		scores["anger"] += negV * arousal * f.Potential
		scores["fear"] += negV * arousal * (1 - f.Potential)
		scores["sadness"] += negV * (1 - arousal)
		scores["disgust"] += negV * (1 - arousal) * f.Stability
	}

	if arousal > 0.6 {
		scores["surprise"] += (arousal - 0.6) * 2
	} else if arousal < 0.3 {
		scores["trust"] += (0.3 - arousal) * 2
	}

	if f.Complexity > 0.7 {
		scores["anticipation"] += 0.3
	}
	if f.Stability < 0.3 {
		scores["fear"] += 0.3
	}

	best, bestScore := "joy", math.Inf(-1)
	for _, em := range []string{"joy", "trust", "fear", "surprise", "sadness", "disgust", "anger", "anticipation"} {
		if scores[em] > bestScore {
			best, bestScore = em, scores[em]
		}
	}
	return best
}
