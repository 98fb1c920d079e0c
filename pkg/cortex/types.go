package cortex

// Message is one turn of a conversation to ingest.
type Message struct {
	Role    string `json:"role"`    // "user", "assistant", "system"
	Content string `json:"content"` // Raw message text
}

// Status reports how an ingest attempt resolved.
type Status string

const (
	// StatusCrystallized means the conversation was ingested and
	// crystallized normally.
	StatusCrystallized Status = "crystallized"

	// StatusLimitReached means the account tier's conversation or crystal
	// ceiling blocked the ingest. This is a structured outcome, not an
	// error.
	StatusLimitReached Status = "limit_reached"
)

// FacetView is one energized facet in a snapshot, sorted descending by
// energy.
type FacetView struct {
	FacetID string  `json:"facet_id"`
	Role    string  `json:"role,omitempty"`
	Energy  float64 `json:"energy"`
	Emotion string  `json:"emotion,omitempty"`
}

// IngestResult summarizes one conversation ingest.
type IngestResult struct {
	Status     Status      `json:"status"`
	Concept    string      `json:"concept,omitempty"`
	CrystalID  string      `json:"crystal_id,omitempty"`
	Level      string      `json:"level,omitempty"`
	FacetCount int         `json:"facet_count"`
	UsageCount int         `json:"usage_count"`
	Presence   float64     `json:"presence"`
	TopFacets  []FacetView `json:"top_facets,omitempty"`
}

// CrystalView is a read-only summary of one crystal.
type CrystalView struct {
	ID         string  `json:"id"`
	Concept    string  `json:"concept"`
	Level      string  `json:"level"`
	FacetCount int     `json:"facet_count"`
	UsageCount int     `json:"usage_count"`
	LastLaw    string  `json:"last_law,omitempty"`
	Outcome    string  `json:"outcome,omitempty"`
	Energy     float64 `json:"energy_change"`
}

// Snapshot is the instantaneous state of the energy field.
type Snapshot struct {
	Presence         float64     `json:"presence"`
	MomentumState    string      `json:"momentum_state"`
	DominantEmotion  string      `json:"dominant_emotion"`
	EmotionIntensity float64     `json:"emotion_intensity"`
	TotalEnergy      float64     `json:"total_energy"`
	TopFacets        []FacetView `json:"top_facets,omitempty"`
}

// CrystalStats aggregates the crystal lattice.
type CrystalStats struct {
	Total              int            `json:"total"`
	Created            int            `json:"created"`
	Evolutions         int            `json:"evolutions"`
	LevelDistribution  map[string]int `json:"level_distribution"`
	RelicFacets        int            `json:"relic_facets"`
	AbstractedConcepts int            `json:"abstracted_concepts"`
}

// Stats is the full engine overview: memory graph, crystal lattice, and
// energy field.
type Stats struct {
	Conversations     int            `json:"conversations"`
	Nodes             int            `json:"nodes"`
	Concepts          int            `json:"concepts"`
	PlatformBreakdown map[string]int `json:"platform_breakdown"`
	Crystals          CrystalStats   `json:"crystals"`
	Presence          float64        `json:"presence"`
	MomentumState     string         `json:"momentum_state"`
	DominantEmotion   string         `json:"dominant_emotion"`
	EmotionIntensity  float64        `json:"emotion_intensity"`
	LawSets           []string       `json:"law_sets"`
}
