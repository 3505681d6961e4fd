package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator hands out time-ordered snowflake identifiers, optionally prefixed.
type Generator struct {
	node *snowflake.Node
}

// New returns a generator bound to the given node id (0-1023).
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("idgen: %w", err)
	}
	return &Generator{node: node}, nil
}

// Next returns "<prefix>_<snowflake>" or the bare snowflake when prefix is empty.
func (g *Generator) Next(prefix string) string {
	id := g.node.Generate()

	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}
