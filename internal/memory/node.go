package memory

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Node is the smallest persisted unit: an id, an arbitrary payload, a
// deduplicated append-only list of dimension tags, and the modification
// timestamp merges use for last-write-wins.
type Node struct {
	ID             string         `json:"id"`
	DimensionLinks []string       `json:"dimension_links"`
	Payload        map[string]any `json:"payload"`
	LastModified   float64        `json:"last_modified_timestamp"`
}

// NewNode creates a node with a fresh id and the current timestamp.
func NewNode(links []string, payload map[string]any) *Node {
	if payload == nil {
		payload = make(map[string]any)
	}
	return &Node{
		ID:             uuid.New().String(),
		DimensionLinks: links,
		Payload:        payload,
		LastModified:   nowUnix(),
	}
}

// apply merges a payload update and link update into the node, returning
// whether anything actually changed. Links are deduplicated, payload keys
// only count as changes when the value differs.
func (n *Node) apply(payloadUpdate map[string]any, linkUpdate []string) bool {
	modified := false

	for key, value := range payloadUpdate {
		if existing, ok := n.Payload[key]; !ok || !valueEqual(existing, value) {
			n.Payload[key] = value
			modified = true
		}
	}

	for _, link := range linkUpdate {
		if !n.hasLink(link) {
			n.DimensionLinks = append(n.DimensionLinks, link)
			modified = true
		}
	}

	if modified {
		n.LastModified = nowUnix()
	}
	return modified
}

func (n *Node) hasLink(link string) bool {
	for _, l := range n.DimensionLinks {
		if l == link {
			return true
		}
	}
	return false
}

// clone returns a deep-enough copy for the save queue: links and the
// top-level payload map are copied, nested values are shared (writes only
// ever replace whole values).
func (n *Node) clone() Node {
	links := make([]string, len(n.DimensionLinks))
	copy(links, n.DimensionLinks)

	payload := make(map[string]any, len(n.Payload))
	for k, v := range n.Payload {
		payload[k] = v
	}

	return Node{
		ID:             n.ID,
		DimensionLinks: links,
		Payload:        payload,
		LastModified:   n.LastModified,
	}
}

func valueEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
