// Package governance classifies arbitrary structured records into a
// linked graph of persisted nodes. A record's key fingerprint resolves to
// a law set (synthesizing a new one when nothing matches), the law maps it
// to a concept, tags and payload, and recursion over nested records builds
// a generationally-linked tree from a single ingest call.
package governance

import (
	"github.com/dyluth/trinity/internal/audit"
	"github.com/dyluth/trinity/internal/memory"
	"go.uber.org/zap"
)

// Engine is the recursive classification/ingestion pipeline.
type Engine struct {
	memory    *memory.Store
	audit     *audit.Store
	logger    *zap.Logger
	generator *Generator

	// lawSets is checked in order; first superset match wins. Synthesized
	// laws are appended, so they never shadow the static sets.
	lawSets []*LawSet
}

// NewEngine creates a governance engine over the given store. The audit
// store may be nil, in which case assessments are only logged.
func NewEngine(mem *memory.Store, auditStore *audit.Store, logger *zap.Logger) *Engine {
	return &Engine{
		memory:    mem,
		audit:     auditStore,
		logger:    logger,
		generator: NewGenerator(logger),
		lawSets:   defaultLawSets(),
	}
}

// LawSetNames returns the current identification order, static sets first.
func (e *Engine) LawSetNames() []string {
	names := make([]string, len(e.lawSets))
	for i, law := range e.lawSets {
		names[i] = law.Name
	}
	return names
}

// Ingest classifies a record, writes its node, and recurses into nested
// records. Classification and law failures never propagate: a failed
// branch is discarded with a logged error and siblings proceed.
func (e *Engine) Ingest(data map[string]any) {
	e.ingest(data, nil, nil)
}

func (e *Engine) ingest(data map[string]any, parentNode *memory.Node, parentLaw *LawSet) {
	law := e.identifyDomain(data)

	if law == nil {
		e.logger.Info("unknown domain, engaging law generator")
		law = e.generator.GenerateLaw(data, e.lawSets)
		if law == nil {
			e.logger.Error("law generator failed, discarding record")
			return
		}
		e.lawSets = append(e.lawSets, law)
	}

	rules, err := law.Analyze(data)
	if err != nil {
		e.logger.Error("law set failed, discarding branch",
			zap.String("domain", law.Name), zap.Error(err))
		e.assess(law.Name, false)
		return
	}
	if parentLaw != nil {
		rules = mutate(rules, parentLaw, law.Name)
	}

	node := e.autoWriteNode(rules, parentNode)
	e.assess(law.Name, node != nil)
	if node == nil {
		return
	}

	// Generational recursion over nested records in the original input.
	for _, item := range findDeeperData(data) {
		e.ingest(item, node, law)
	}
}

// identifyDomain returns the first law set whose fingerprint the record's
// key set covers, or nil.
func (e *Engine) identifyDomain(data map[string]any) *LawSet {
	for _, law := range e.lawSets {
		if law.Matches(data) {
			return law
		}
	}
	return nil
}

// autoWriteNode finds or creates the node for a concept and records the
// two-way generational link to the parent.
func (e *Engine) autoWriteNode(rules Rules, parentNode *memory.Node) *memory.Node {
	var node *memory.Node

	if id, ok := e.memory.FindNodeIDByConcept(rules.Concept); ok {
		e.memory.ModifyNode(id, rules.PayloadUpdate, rules.Dimensions)
		node = e.memory.GetNode(id)
	} else {
		payload := map[string]any{"concept": rules.Concept}
		for k, v := range rules.PayloadUpdate {
			payload[k] = v
		}
		node = memory.NewNode(rules.Dimensions, payload)
		e.memory.AddNode(node)
	}

	if parentNode != nil && node != nil {
		e.memory.ModifyNode(node.ID, nil, []string{"dim_parent_link:" + parentNode.ID})
		e.memory.ModifyNode(parentNode.ID, nil, []string{"dim_child_link:" + node.ID})
	}

	return node
}

// findDeeperData returns the nested maps and list-of-map elements of a
// record, in no particular order.
func findDeeperData(data map[string]any) []map[string]any {
	var deeper []map[string]any
	for _, value := range data {
		switch v := value.(type) {
		case map[string]any:
			deeper = append(deeper, v)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					deeper = append(deeper, m)
				}
			}
		case []map[string]any:
			deeper = append(deeper, v...)
		}
	}
	return deeper
}

// assess appends one feedback entry per law application. Audit failures
// are logged, never fatal.
func (e *Engine) assess(domain string, success bool) {
	e.logger.Info("law application assessed",
		zap.String("domain", domain), zap.Bool("success", success))

	if e.audit != nil {
		if err := e.audit.Record(domain, success); err != nil {
			e.logger.Error("failed to record assessment", zap.Error(err))
		}
	}
}
