package cortex

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dyluth/trinity/internal/audit"
	"github.com/dyluth/trinity/internal/config"
	"github.com/dyluth/trinity/internal/crystal"
	"github.com/dyluth/trinity/internal/energy"
	"github.com/dyluth/trinity/internal/governance"
	"github.com/dyluth/trinity/internal/memory"
	"go.uber.org/zap"
)

// EnergyField is the physics capability the engine needs. The full
// implementation is the energy regulator; a no-op field stands in when
// physics is disabled.
type EnergyField interface {
	RegisterCrystal(c *crystal.Crystal) error
	InjectEnergy(facetID string, amount float64)
	Step(dt float64)
	Snapshot(topN int) (float64, []energy.FacetEnergy)
	Diagnostics() energy.Diagnostics
	SetPersonality(p energy.Personality)
	TotalEnergy() float64
}

// ConceptStore is the classification capability: structured records in,
// linked concept nodes out.
type ConceptStore interface {
	Ingest(data map[string]any)
	LawSetNames() []string
}

// noopEnergyField satisfies EnergyField without running any physics.
type noopEnergyField struct{}

func (noopEnergyField) RegisterCrystal(*crystal.Crystal) error { return nil }
func (noopEnergyField) InjectEnergy(string, float64)           {}
func (noopEnergyField) Step(float64)                           {}
func (noopEnergyField) Snapshot(int) (float64, []energy.FacetEnergy) {
	return 1.0, nil
}
func (noopEnergyField) Diagnostics() energy.Diagnostics {
	return energy.Diagnostics{
		Presence:      1.0,
		MomentumState: "STABLE",
		GlobalEmotion: energy.GlobalEmotion{Primary: "neutral"},
	}
}
func (noopEnergyField) SetPersonality(energy.Personality) {}
func (noopEnergyField) TotalEnergy() float64              { return 0 }

// tierLimits returns the conversation and crystal ceilings for an account
// tier. Negative means unlimited.
func tierLimits(tier string) (conversations, crystals int) {
	switch tier {
	case "free":
		return 1000, 100
	case "pro":
		return 25000, 2500
	default:
		// lifetime and enterprise
		return -1, -1
	}
}

// Engine wires the governance pipeline, crystal lattice, energy field and
// persistence into one facade. All lattice-touching operations are
// serialized internally; the engine is safe for concurrent use.
type Engine struct {
	cfg    *config.TrinityConfig
	logger *zap.Logger

	memory   *memory.Store
	audit    *audit.Store
	concepts ConceptStore
	energy   EnergyField

	mu            sync.Mutex
	crystals      *crystal.System
	facetRoles    map[string]string
	conversations int
	lastStep      time.Time
}

// New builds a fully wired engine from configuration. Call Start to launch
// the persistence loops and Close to flush them.
func New(cfg *config.TrinityConfig, logger *zap.Logger) (*Engine, error) {
	memCfg := memory.DefaultConfig(cfg.DataDir)
	memCfg.MergeInterval = time.Duration(*cfg.Memory.MergeIntervalSeconds) * time.Second
	memCfg.QueueSize = *cfg.Memory.QueueSize

	store, err := memory.NewStore(memCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	auditStore, err := audit.Open(filepath.Join(cfg.DataDir, "audit.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	lawEngine := crystal.NewEngine("trinity")

	var field EnergyField = noopEnergyField{}
	if *cfg.Energy.Enabled {
		regCfg := energy.DefaultConfig()
		regCfg.ConservationLimit = *cfg.Energy.ConservationLimit
		regCfg.BaseDecayRate = *cfg.Energy.BaseDecayRate
		regCfg.DispersalFraction = *cfg.Energy.DispersalFraction
		regCfg.TopK = *cfg.Energy.TopK
		regCfg.CuriosityEnabled = *cfg.Energy.Curiosity

		reg := energy.NewRegulator(regCfg, logger)
		reg.SetPersonality(energy.Personality{
			Openness:          cfg.Personality.Openness,
			Conscientiousness: cfg.Personality.Conscientiousness,
			Extraversion:      cfg.Personality.Extraversion,
			Agreeableness:     cfg.Personality.Agreeableness,
			Neuroticism:       cfg.Personality.Neuroticism,
		})
		field = reg
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		memory:     store,
		audit:      auditStore,
		concepts:   governance.NewEngine(store, auditStore, logger),
		energy:     field,
		crystals:   crystal.NewSystem(lawEngine, logger),
		facetRoles: make(map[string]string),
		lastStep:   time.Now(),
	}, nil
}

// Start launches the persistence background loops.
func (e *Engine) Start(ctx context.Context) {
	e.memory.Start(ctx)
}

// Close stops the background loops, flushes pending writes, compacts the
// delta log, and releases the audit store.
func (e *Engine) Close() error {
	if err := e.memory.Close(); err != nil {
		return fmt.Errorf("failed to flush memory store: %w", err)
	}
	if err := e.memory.ForceMerge(); err != nil {
		e.logger.Warn("final merge failed", zap.Error(err))
	}
	if err := e.audit.Close(); err != nil {
		return fmt.Errorf("failed to close audit store: %w", err)
	}
	return nil
}

// IngestConversation runs the full pipeline for one conversation: tier
// check, governance ingest of the conversation tree, crystallization with
// per-role facets, energy registration and injection, one physics step,
// and a field snapshot. Hitting a tier ceiling returns StatusLimitReached,
// not an error.
func (e *Engine) IngestConversation(platform, conversationID string, messages []Message) (*IngestResult, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if platform == "" {
		platform = "other"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	convLimit, crystalLimit := tierLimits(e.cfg.Tier)
	if (convLimit >= 0 && e.conversations >= convLimit) ||
		(crystalLimit >= 0 && e.crystals.GetStats().TotalCrystals >= crystalLimit) {
		e.logger.Warn("tier limit reached",
			zap.String("tier", e.cfg.Tier),
			zap.Int("conversations", e.conversations))
		return &IngestResult{Status: StatusLimitReached}, nil
	}

	e.concepts.Ingest(conversationRecord(platform, conversationID, messages))

	concept := "conv_" + conversationID
	c := e.crystals.GetOrCreate(concept,
		fmt.Sprintf("%s conversation %s", platform, conversationID))

	// One facet per participating role, confidence growing with volume.
	roleCounts := make(map[string]int)
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		roleCounts[role]++
	}
	for role, count := range roleCounts {
		confidence := min(1.0, float64(count)/10.0)
		c.AddFacet(role+"_messages",
			fmt.Sprintf("%d %s messages", count, role), confidence)
	}

	c = e.crystals.Use(concept, nil)

	if err := e.energy.RegisterCrystal(c); err != nil {
		return nil, fmt.Errorf("failed to register crystal %s: %w", c.ID, err)
	}
	for id, f := range c.Facets {
		e.facetRoles[id] = f.Role
	}

	amount := min(1.0, float64(len(messages))/20.0)
	for id := range c.Facets {
		e.energy.InjectEnergy(id, amount)
	}

	e.stepLocked()
	presence, top := e.energy.Snapshot(5)

	e.conversations++

	return &IngestResult{
		Status:     StatusCrystallized,
		Concept:    c.Concept,
		CrystalID:  c.ID,
		Level:      c.Level.String(),
		FacetCount: len(c.Facets),
		UsageCount: c.UsageCount,
		Presence:   presence,
		TopFacets:  e.facetViews(top),
	}, nil
}

// UseCrystal applies one governed use to a concept's crystal. The data map
// may carry context: threat_level (float), stress_count (int), new_pattern
// and false_positive (bool).
func (e *Engine) UseCrystal(concept string, data map[string]any) (*CrystalView, error) {
	if concept == "" {
		return nil, fmt.Errorf("concept is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.crystals.Use(concept, actionContext(data))
	return &CrystalView{
		ID:         c.ID,
		Concept:    c.Concept,
		Level:      c.Level.String(),
		FacetCount: len(c.Facets),
		UsageCount: c.UsageCount,
	}, nil
}

// LinkConcepts creates or strengthens the symmetric pathway between two
// concepts.
func (e *Engine) LinkConcepts(concept1, concept2 string, weight float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.crystals.Link(concept1, concept2, nil, weight)
}

// InjectEnergy adds energy to one facet, dampened by presence.
func (e *Engine) InjectEnergy(facetID string, amount float64) {
	e.energy.InjectEnergy(facetID, amount)
}

// Step advances the physics by the wall-clock time since the last step and
// decays the crystal lattice.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepLocked()
}

func (e *Engine) stepLocked() {
	now := time.Now()
	dt := now.Sub(e.lastStep).Seconds()
	if dt <= 0 || dt > 10 {
		dt = 1.0
	}
	e.lastStep = now

	e.energy.Step(dt)
	e.crystals.DecayAll()
}

// Snapshot returns the current energy field state with the top-N facets.
func (e *Engine) Snapshot(topN int) *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, top := e.energy.Snapshot(topN)
	diag := e.energy.Diagnostics()

	return &Snapshot{
		Presence:         diag.Presence,
		MomentumState:    diag.MomentumState,
		DominantEmotion:  diag.GlobalEmotion.Primary,
		EmotionIntensity: diag.GlobalEmotion.Intensity,
		TotalEnergy:      e.energy.TotalEnergy(),
		TopFacets:        e.facetViews(top),
	}
}

// Stats returns the full engine overview.
func (e *Engine) Stats() *Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	breakdown := make(map[string]int, 4)
	for _, platform := range []string{"chatgpt", "claude", "perplexity", "other"} {
		breakdown[platform] = e.memory.CountByTag("dim_platform:" + platform)
	}

	cs := e.crystals.GetStats()
	diag := e.energy.Diagnostics()

	return &Stats{
		Conversations:     e.conversations,
		Nodes:             e.memory.NodeCount(),
		Concepts:          e.memory.ConceptCount(),
		PlatformBreakdown: breakdown,
		Crystals: CrystalStats{
			Total:              cs.TotalCrystals,
			Created:            cs.CrystalsCreated,
			Evolutions:         cs.TotalEvolutions,
			LevelDistribution:  cs.LevelDistribution,
			RelicFacets:        cs.RelicFacets,
			AbstractedConcepts: cs.AbstractedConcepts,
		},
		Presence:         diag.Presence,
		MomentumState:    diag.MomentumState,
		DominantEmotion:  diag.GlobalEmotion.Primary,
		EmotionIntensity: diag.GlobalEmotion.Intensity,
		LawSets:          e.concepts.LawSetNames(),
	}
}

// Ingest classifies one arbitrary structured record through the governance
// pipeline without crystallizing it.
func (e *Engine) Ingest(data map[string]any) {
	e.concepts.Ingest(data)
}

// Compact forces one delta-log merge cycle.
func (e *Engine) Compact() error {
	return e.memory.ForceMerge()
}

// AuditRecent returns the newest n law assessments.
func (e *Engine) AuditRecent(n int) ([]audit.Assessment, error) {
	return e.audit.Recent(n)
}

// AuditRates returns per-domain law success rates.
func (e *Engine) AuditRates() ([]audit.DomainRate, error) {
	return e.audit.DomainRates()
}

// conversationRecord builds the governance record for a conversation,
// enriching each message with its position so re-ingestion resolves to the
// same concepts.
func conversationRecord(platform, conversationID string, messages []Message) map[string]any {
	msgs := make([]any, 0, len(messages))
	for i, m := range messages {
		msgs = append(msgs, map[string]any{
			"role":            m.Role,
			"content":         m.Content,
			"conversation_id": conversationID,
			"index":           i,
			"platform":        platform,
		})
	}
	return map[string]any{
		"platform":        platform,
		"conversation_id": conversationID,
		"messages":        msgs,
	}
}

// actionContext maps loosely-typed use data onto a governance context.
func actionContext(data map[string]any) *crystal.ActionContext {
	if len(data) == 0 {
		return nil
	}

	ctx := &crystal.ActionContext{}
	if v, ok := data["threat_level"].(float64); ok {
		ctx.ThreatLevel = v
	}
	if v, ok := data["stress_count"].(int); ok {
		ctx.StressCount = v
	}
	if v, ok := data["new_pattern"].(bool); ok {
		ctx.NewPattern = v
	}
	if v, ok := data["false_positive"].(bool); ok {
		ctx.FalsePositive = v
	}
	return ctx
}

// facetViews maps raw field entries to the public view, resolving roles
// for facets this engine crystallized.
func (e *Engine) facetViews(entries []energy.FacetEnergy) []FacetView {
	views := make([]FacetView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, FacetView{
			FacetID: entry.FacetID,
			Role:    e.facetRoles[entry.FacetID],
			Energy:  entry.Energy,
			Emotion: entry.Emotion.Primary,
		})
	}
	return views
}
