// Package cortex provides the orchestration facade over the Trinity
// cognitive engine: the governance pipeline that classifies structured
// records into a persisted concept graph, the crystal lattice that grows
// and evolves concepts through governed use, and the energy regulator that
// runs the physics of attention and emotion over crystal facets.
//
// # Overview
//
// Conversations are the primary input. Ingesting one writes a linked tree
// of memory nodes (one per conversation, one per message), crystallizes
// the conversation into a concept crystal with per-role facets, registers
// those facets in the energy field, injects energy proportional to the
// conversation's size, and advances the physics one step.
//
// # Core Concepts
//
// Crystals are named concepts built from facets. Repeated governed use
// evolves them BASE → COMPOSITE → FULL_CONCEPT → QUASI; a QUASI crystal
// generates its own internal laws and governs itself.
//
// The energy field tracks per-facet energy under a global conservation
// budget, disperses it along character-similarity links, and derives
// per-facet and global emotional state each step.
//
// The memory store persists every concept node through a write-ahead
// delta log that is periodically compacted into a base snapshot.
//
// # Usage Example
//
//	import "github.com/dyluth/trinity/pkg/cortex"
//
//	engine, err := cortex.New(config.Default(), logger)
//	if err != nil {
//		return err
//	}
//	engine.Start(ctx)
//	defer engine.Close()
//
//	result, err := engine.IngestConversation("claude", "conv-1", []cortex.Message{
//		{Role: "user", Content: "what is gravity?"},
//		{Role: "assistant", Content: "curvature of spacetime"},
//	})
package cortex
