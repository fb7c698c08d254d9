package route

import (
	"strings"

	"github.com/google/btree"
)

// conflictSet is the builder's ordered container of accepted nodes.
type conflictSet struct {
	tree *btree.BTreeG[*Node]
}

func newConflictSet() *conflictSet {
	return &conflictSet{tree: btree.NewG(8, lessNodes)}
}

// ceiling returns the smallest node whose path is >= path.
func (s *conflictSet) ceiling(path string) *Node {
	var out *Node
	s.tree.AscendGreaterOrEqual(&Node{path: path}, func(n *Node) bool {
		out = n
		return false
	})
	return out
}

// floor returns the largest node whose path is <= path.
func (s *conflictSet) floor(path string) *Node {
	var out *Node
	s.tree.DescendLessOrEqual(&Node{path: path}, func(n *Node) bool {
		out = n
		return false
	})
	return out
}

// overlaps reports whether some input path is accepted by both nodes.
func overlaps(a, b *Node) bool {
	switch {
	case a.path == b.path:
		return true
	case a.prefix && strings.HasPrefix(b.path, a.path):
		return true
	case b.prefix && strings.HasPrefix(a.path, b.path):
		return true
	}
	return false
}

// redeclares reports whether n is the very same declaration as cand.
func redeclares(n, cand *Node) bool {
	return n.path == cand.path && n.prefix == cand.prefix && n.Same(cand)
}

// check returns the accepted node cand conflicts with, or nil. dup is true
// when cand repeats an accepted declaration and must be skipped.
func (s *conflictSet) check(cand *Node) (peer *Node, dup bool) {
	for _, n := range []*Node{s.ceiling(cand.path), s.floor(cand.path)} {
		if n == nil || !overlaps(n, cand) {
			continue
		}
		if redeclares(n, cand) {
			return nil, true
		}
		return n, false
	}
	return nil, false
}

func (s *conflictSet) insert(n *Node) {
	s.tree.ReplaceOrInsert(n)
}

func (s *conflictSet) len() int {
	return s.tree.Len()
}

// sorted returns the nodes in path order.
func (s *conflictSet) sorted() []*Node {
	out := make([]*Node, 0, s.tree.Len())
	s.tree.Ascend(func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}
