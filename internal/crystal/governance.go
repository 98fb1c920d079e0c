package crystal

import "math/rand"

// Action is a governed interaction with a crystal.
type Action string

const (
	ActionLink     Action = "link"
	ActionAddFacet Action = "add_facet"
	ActionUse      Action = "use"
)

// Outcome of a law application.
type Outcome string

const (
	OutcomePositive Outcome = "positive"
	OutcomeNegative Outcome = "negative"
	OutcomeNeutral  Outcome = "neutral"
)

// ActionContext carries the situational signals governance reads.
type ActionContext struct {
	ThreatLevel   float64
	StressCount   int
	NewPattern    bool
	FalsePositive bool
}

// LawResult is the verdict of one law application.
type LawResult struct {
	Law          string
	Outcome      Outcome
	EnergyChange float64
}

// Engine applies the eight physics laws to crystal interactions. Law choice
// is deterministic per action, except for a small chance of a CHAOS spike,
// and QUASI crystals are handed governance of themselves.
type Engine struct {
	Theme            string
	ChaosChance      float64
	TotalLawsApplied int
}

// NewEngine creates a governance engine for the given data theme.
func NewEngine(theme string) *Engine {
	return &Engine{
		Theme:       theme,
		ChaosChance: 0.1,
	}
}

// ApplyLaw picks a law for the action and derives an outcome from the
// context. QUASI crystals govern themselves instead.
func (e *Engine) ApplyLaw(c *Crystal, ctx *ActionContext, action Action) LawResult {
	e.TotalLawsApplied++

	if c.Level == LevelQuasi {
		return c.ApplyInternalGovernance(ctx)
	}

	law := "ENERGY"
	switch action {
	case ActionLink:
		law = "COLLISION"
	case ActionAddFacet:
		law = "ENERGY"
	case ActionUse:
		switch {
		case ctx != nil && ctx.NewPattern:
			law = "CONSCIOUSNESS"
		case ctx != nil && ctx.ThreatLevel > 0.7:
			law = "MOTION"
		default:
			law = "GOVERNANCE"
		}
	}

	if rand.Float64() < e.ChaosChance {
		law = "CHAOS"
	}

	threat := 0.5
	falsePositive := false
	if ctx != nil {
		threat = ctx.ThreatLevel
		falsePositive = ctx.FalsePositive
	}

	outcome := OutcomeNeutral
	energyChange := 0.0

	switch law {
	case "ENERGY":
		outcome = OutcomePositive
		energyChange = 0.1
	case "MOTION":
		if threat > 0.7 {
			outcome = OutcomeNegative
		} else {
			outcome = OutcomePositive
		}
	case "COLLISION":
		if threat > 0.8 {
			outcome = OutcomeNegative
			energyChange = -0.2
		} else {
			outcome = OutcomePositive
			energyChange = 0.1
		}
	case "CHAOS":
		outcome = OutcomeNegative
		energyChange = -0.5
	case "CONSCIOUSNESS":
		outcome = OutcomePositive
		energyChange = 0.2
	case "GOVERNANCE":
		if falsePositive {
			outcome = OutcomeNegative
		} else {
			outcome = OutcomePositive
		}
	}

	return LawResult{Law: law, Outcome: outcome, EnergyChange: energyChange}
}
