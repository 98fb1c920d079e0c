package governance

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// conceptKeyPriority is the preference order for choosing which record key
// names the concept in a synthesized law.
var conceptKeyPriority = []string{"id", "concept", "name", "filepath", "ip"}

// Generator synthesizes a new law set for records no known domain matches,
// by adapting the shape of the closest known relative.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a law generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// GenerateLaw scores the record's fingerprint against every known law set
// by Jaccard similarity, adapts the best match (falling back to BINARY
// below 0.2), and returns a permanent closure-based law set. The generated
// name derives from the record's first fingerprint key; keys are sorted so
// the choice is stable across runs.
func (g *Generator) GenerateLaw(data map[string]any, known []*LawSet) *LawSet {
	fingerprint := sortedKeys(data)
	if len(fingerprint) == 0 {
		return nil
	}

	base := g.findClosestLaw(fingerprint, known)
	if base == nil {
		for _, law := range known {
			if law.Name == "BINARY" {
				base = law
				break
			}
		}
	}
	if base == nil {
		return nil
	}

	conceptKey := fingerprint[0]
	for _, key := range conceptKeyPriority {
		if _, ok := data[key]; ok {
			conceptKey = key
			break
		}
	}

	theme := "dyn_" + conceptKey
	name := "DYN_" + strings.ToUpper(fingerprint[0])
	baseName := base.Name

	g.logger.Info("synthesized new law set",
		zap.String("name", name),
		zap.String("adapted_from", baseName),
		zap.Strings("fingerprint", fingerprint))

	return &LawSet{
		Name:            name,
		FingerprintKeys: fingerprint,
		Analyze: func(record map[string]any) (Rules, error) {
			payload := make(map[string]any, len(record))
			for k, v := range record {
				payload[k] = v
			}
			return Rules{
				Concept: fmt.Sprintf("DYN_%v", record[conceptKey]),
				Dimensions: []string{
					"dim_theme:" + theme,
					"dim_adapted_from:" + baseName,
				},
				PayloadUpdate: payload,
			}, nil
		},
	}
}

// findClosestLaw returns the known law with the highest Jaccard similarity
// to the fingerprint, or nil when nothing scores above 0.2.
func (g *Generator) findClosestLaw(fingerprint []string, known []*LawSet) *LawSet {
	fpSet := make(map[string]bool, len(fingerprint))
	for _, k := range fingerprint {
		fpSet[k] = true
	}

	var best *LawSet
	bestScore := 0.2
	for _, law := range known {
		knownSet := make(map[string]bool, len(law.FingerprintKeys))
		for _, k := range law.FingerprintKeys {
			knownSet[k] = true
		}

		intersection := 0
		for k := range fpSet {
			if knownSet[k] {
				intersection++
			}
		}
		union := len(fpSet) + len(knownSet) - intersection
		if union == 0 {
			continue
		}

		if score := float64(intersection) / float64(union); score > bestScore {
			bestScore = score
			best = law
		}
	}

	if best != nil {
		g.logger.Info("closest law match",
			zap.String("domain", best.Name),
			zap.Float64("score", bestScore))
	}
	return best
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
