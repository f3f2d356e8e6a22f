//
// Copyright (C) 2026 The koog-go Authors.  All rights reserved.
//
// koog-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"strings"
)

// PathSeparator joins the segments of a qualified node path.
const PathSeparator = ":"

// Strategy is a named top-level subgraph together with the qualified
// path index built over it.
type Strategy struct {
	root *Subgraph

	// chains maps a qualified path to the node chain from the strategy
	// root to the leaf.
	chains map[string][]Node
	// byLeaf maps a node name to its unique qualified path. Start and
	// finish nodes are excluded; their names repeat per subgraph.
	byLeaf map[string]string
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return s.root.name }

// Root returns the top-level subgraph.
func (s *Strategy) Root() *Subgraph { return s.root }

// Resolve maps a node id to its qualified path. A full qualified path
// resolves to itself; a bare name matches by last segment. Ambiguity is
// impossible here because the builder rejects duplicate names.
func (s *Strategy) Resolve(nodeID string) (string, error) {
	if _, ok := s.chains[nodeID]; ok {
		return nodeID, nil
	}
	if path, ok := s.byLeaf[nodeID]; ok {
		return path, nil
	}
	return "", &NodeNotFoundError{NodeID: nodeID}
}

// Walk returns the sub-node chain from the strategy root to the leaf at
// the qualified path.
func (s *Strategy) Walk(path string) ([]Node, error) {
	chain, ok := s.chains[path]
	if !ok {
		return nil, &NodeNotFoundError{NodeID: path}
	}
	return chain, nil
}

// LeafName returns the last segment of a qualified path.
func LeafName(path string) string {
	segments := strings.Split(path, PathSeparator)
	return segments[len(segments)-1]
}

// index assigns qualified paths recursively and builds the chain and
// leaf lookup tables.
func (s *Strategy) index() error {
	s.chains = make(map[string][]Node)
	s.byLeaf = make(map[string]string)
	s.root.path = s.root.name
	return s.indexSubgraph(s.root, nil)
}

func (s *Strategy) indexSubgraph(sg *Subgraph, prefix []Node) error {
	for _, name := range sg.order {
		node := sg.nodes[name]
		path := sg.path + PathSeparator + name
		chain := append(append([]Node(nil), prefix...), node)
		s.chains[path] = chain

		if name != StartNodeName && name != FinishNodeName {
			if existing, dup := s.byLeaf[name]; dup {
				return &BuildError{
					Graph:  s.root.name,
					Reason: "duplicate node name " + name + " at " + existing + " and " + path,
				}
			}
			s.byLeaf[name] = path
		}

		if container, ok := node.(Container); ok {
			body := container.Body()
			body.path = path
			if err := s.indexSubgraph(body, chain); err != nil {
				return err
			}
		}
	}
	return nil
}
