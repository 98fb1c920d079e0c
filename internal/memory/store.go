// Package memory is the persistence subsystem: an in-memory node index
// with a write-ahead queue, a background save loop appending node
// snapshots to an NDJSON delta log, and a periodic merge loop compacting
// the delta log into the base snapshot file via atomic renames.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config locates the on-disk state and tunes the background loops.
type Config struct {
	// BasePath is the full JSON snapshot file.
	BasePath string
	// DeltaPath is the newline-delimited JSON write-ahead log.
	DeltaPath string
	// MergeInterval is how often the delta log is compacted into the base.
	MergeInterval time.Duration
	// QueueSize bounds the write-ahead queue.
	QueueSize int
}

// DefaultConfig stores state in the given directory with the standard
// file names.
func DefaultConfig(dir string) Config {
	return Config{
		BasePath:      dir + "/system_base_state.json",
		DeltaPath:     dir + "/system_live.deltalog",
		MergeInterval: 30 * time.Second,
		QueueSize:     1024,
	}
}

type baseState struct {
	LastGlobalSaveTimestamp float64         `json:"last_global_save_timestamp"`
	Nodes                   map[string]Node `json:"nodes"`
}

// Store owns the node index, the save queue, and the lifecycle of the two
// background loops. Mutations enqueue full node snapshots; enqueueing
// never fails the caller.
type Store struct {
	cfg    Config
	logger *zap.Logger

	mu             sync.RWMutex
	nodes          map[string]*Node
	dimensionIndex map[string][]string
	conceptIndex   map[string]string

	queue   chan Node
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewStore builds the index, loading any existing base snapshot.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	s := &Store{
		cfg:            cfg,
		logger:         logger,
		nodes:          make(map[string]*Node),
		dimensionIndex: make(map[string][]string),
		conceptIndex:   make(map[string]string),
		queue:          make(chan Node, cfg.QueueSize),
	}
	if err := s.loadBase(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadBase() error {
	raw, err := os.ReadFile(s.cfg.BasePath)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no base state file, starting fresh", zap.String("path", s.cfg.BasePath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read base state: %w", err)
	}

	var state baseState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("failed to decode base state: %w", err)
	}

	for id, node := range state.Nodes {
		n := node
		n.ID = id
		s.nodes[id] = &n
		s.updateIndices(&n)
	}

	s.logger.Info("base state loaded", zap.Int("nodes", len(s.nodes)))
	return nil
}

// updateIndices registers a node's tags and concept. Caller holds mu.
func (s *Store) updateIndices(n *Node) {
	for _, link := range n.DimensionLinks {
		ids := s.dimensionIndex[link]
		found := false
		for _, id := range ids {
			if id == n.ID {
				found = true
				break
			}
		}
		if !found {
			s.dimensionIndex[link] = append(ids, n.ID)
		}
	}

	if concept, ok := n.Payload["concept"].(string); ok && concept != "" {
		s.conceptIndex[concept] = n.ID
	}
}

// AddNode indexes a new node and queues its first save.
func (s *Store) AddNode(n *Node) {
	s.mu.Lock()
	if _, exists := s.nodes[n.ID]; exists {
		s.logger.Warn("node already exists, overwriting", zap.String("node_id", n.ID))
	}
	s.nodes[n.ID] = n
	s.updateIndices(n)
	snapshot := n.clone()
	s.mu.Unlock()

	s.enqueue(snapshot)
}

// ModifyNode applies payload and link updates to an existing node and, if
// anything changed, queues exactly one snapshot for durable write.
func (s *Store) ModifyNode(nodeID string, payloadUpdate map[string]any, linkUpdate []string) {
	s.mu.Lock()
	n, ok := s.nodes[nodeID]
	if !ok {
		s.mu.Unlock()
		s.logger.Error("modify failed, node not found", zap.String("node_id", nodeID))
		return
	}

	modified := n.apply(payloadUpdate, linkUpdate)
	if modified {
		s.updateIndices(n)
	}
	snapshot := n.clone()
	s.mu.Unlock()

	if modified {
		s.enqueue(snapshot)
	}
}

// GetNode returns the node with the given id, or nil.
func (s *Store) GetNode(nodeID string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[nodeID]
}

// FindNodeIDByConcept resolves a concept name to its single node id.
func (s *Store) FindNodeIDByConcept(concept string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.conceptIndex[concept]
	return id, ok
}

// NodesByTag returns the ids carrying a dimension tag.
func (s *Store) NodesByTag(tag string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.dimensionIndex[tag]))
	copy(ids, s.dimensionIndex[tag])
	return ids
}

// CountByTag returns how many nodes carry a dimension tag.
func (s *Store) CountByTag(tag string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dimensionIndex[tag])
}

// NodeCount and ConceptCount size the index.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) ConceptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conceptIndex)
}

// enqueue pushes a node snapshot onto the save queue without ever failing
// the caller: a full queue drops the snapshot with a warning. Dropped
// snapshots are recovered by the next write of the same node.
func (s *Store) enqueue(snapshot Node) {
	select {
	case s.queue <- snapshot:
	default:
		s.logger.Warn("save queue full, dropping snapshot", zap.String("node_id", snapshot.ID))
	}
}

// Start launches the save and merge loops. The parent context cancels
// them, as does Close.
func (s *Store) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.saveLoop(loopCtx)
	go s.mergeLoop(loopCtx)
}

// Close stops both loops, then synchronously flushes anything left in the
// queue to the delta log so no in-flight mutation is dropped.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	for {
		select {
		case snapshot := <-s.queue:
			if err := s.appendDelta(snapshot); err != nil {
				s.logger.Error("shutdown flush failed", zap.String("node_id", snapshot.ID), zap.Error(err))
			}
		default:
			return nil
		}
	}
}

// saveLoop drains the queue, appending one JSON line per snapshot to the
// delta log. Write errors are logged and the loop continues.
func (s *Store) saveLoop(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("save loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("save loop shutting down")
			return
		case snapshot := <-s.queue:
			if err := s.appendDelta(snapshot); err != nil {
				s.logger.Error("delta append failed", zap.String("node_id", snapshot.ID), zap.Error(err))
			}
		}
	}
}

func (s *Store) appendDelta(snapshot Node) error {
	line, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode node snapshot: %w", err)
	}

	f, err := os.OpenFile(s.cfg.DeltaPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open delta log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to delta log: %w", err)
	}
	return nil
}

// mergeLoop periodically compacts the delta log into the base file.
func (s *Store) mergeLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.MergeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("merge loop shutting down")
			return
		case <-ticker.C:
			if err := s.ForceMerge(); err != nil {
				s.logger.Error("merge failed", zap.Error(err))
			}
		}
	}
}

// ForceMerge renames the delta log aside, replays its lines onto the last
// base snapshot (last-write-wins by modification timestamp), atomically
// replaces the base file, and deletes the consumed delta. On failure the
// renamed delta is restored so no writes are lost. Corrupt lines are
// skipped with a warning.
func (s *Store) ForceMerge() error {
	mergingPath := s.cfg.DeltaPath + ".merging"
	if err := os.Rename(s.cfg.DeltaPath, mergingPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stage delta log: %w", err)
	}

	if err := s.mergeStaged(mergingPath); err != nil {
		if restoreErr := os.Rename(mergingPath, s.cfg.DeltaPath); restoreErr != nil {
			s.logger.Error("failed to restore delta log after merge failure", zap.Error(restoreErr))
		}
		return err
	}
	return nil
}

func (s *Store) mergeStaged(mergingPath string) error {
	state := baseState{Nodes: make(map[string]Node)}
	if raw, err := os.ReadFile(s.cfg.BasePath); err == nil {
		if err := json.Unmarshal(raw, &state); err != nil {
			return fmt.Errorf("failed to decode base state: %w", err)
		}
		if state.Nodes == nil {
			state.Nodes = make(map[string]Node)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read base state: %w", err)
	}

	f, err := os.Open(mergingPath)
	if err != nil {
		return fmt.Errorf("failed to open staged delta: %w", err)
	}

	latest := state.LastGlobalSaveTimestamp
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var node Node
		if err := json.Unmarshal(scanner.Bytes(), &node); err != nil {
			s.logger.Warn("skipping corrupt delta line", zap.Error(err))
			continue
		}
		if existing, ok := state.Nodes[node.ID]; !ok || node.LastModified >= existing.LastModified {
			state.Nodes[node.ID] = node
		}
		if node.LastModified > latest {
			latest = node.LastModified
		}
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("failed to read staged delta: %w", scanErr)
	}

	state.LastGlobalSaveTimestamp = latest

	merged, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode merged state: %w", err)
	}

	tmpPath := s.cfg.BasePath + ".tmp"
	if err := os.WriteFile(tmpPath, merged, 0o644); err != nil {
		return fmt.Errorf("failed to write merged state: %w", err)
	}
	if err := os.Rename(tmpPath, s.cfg.BasePath); err != nil {
		return fmt.Errorf("failed to replace base state: %w", err)
	}

	if err := os.Remove(mergingPath); err != nil {
		s.logger.Warn("failed to remove consumed delta", zap.Error(err))
	}

	s.logger.Info("merge complete", zap.Int("nodes", len(state.Nodes)))
	return nil
}
