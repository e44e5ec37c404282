// Package proxy filters and sorts the asset tree for display.
package proxy

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/bd-pipeline/bd-loader/pkg/tree"
)

// Row is one visible line of the tree view.
type Row struct {
	Handle tree.Handle
	Node   *tree.Node
	Depth  int
}

// Proxy is a filtered, naturally sorted view over a tree.Model. A node is
// accepted when its key or the key of any descendant matches the wildcard.
type Proxy struct {
	model   *tree.Model
	pattern string
	matcher glob.Glob
}

// New wraps model with an empty filter.
func New(model *tree.Model) *Proxy {
	return &Proxy{model: model}
}

// Model returns the source model.
func (p *Proxy) Model() *tree.Model {
	return p.model
}

// Filter returns the active wildcard.
func (p *Proxy) Filter() string {
	return p.pattern
}

// SetFilterWildcard sets a case-insensitive wildcard (`*`, `?`, `[...]`)
// matched anywhere in a node key. An empty pattern accepts everything.
func (p *Proxy) SetFilterWildcard(pattern string) {
	p.pattern = pattern
	p.matcher = compileWildcard(pattern)
}

func compileWildcard(pattern string) glob.Glob {
	if pattern == "" {
		return nil
	}
	lower := strings.ToLower(pattern)
	escaped := strings.NewReplacer(`\`, `\\`, `{`, `\{`, `}`, `\}`).Replace(lower)
	if g, err := glob.Compile("*" + escaped + "*"); err == nil {
		return g
	}
	return glob.MustCompile("*" + glob.QuoteMeta(lower) + "*")
}

func (p *Proxy) matches(n *tree.Node) bool {
	if p.matcher == nil {
		return true
	}
	return p.matcher.Match(strings.ToLower(p.model.RelativeKey(n)))
}

// Accepts reports whether h is visible under the current filter.
func (p *Proxy) Accepts(h tree.Handle) bool {
	n, ok := p.model.Node(h)
	if !ok {
		return false
	}
	if p.matches(n) {
		return true
	}
	for _, child := range p.model.Children(h) {
		if p.Accepts(child) {
			return true
		}
	}
	return false
}

// SortedChildren returns the accepted children of h in ascending natural
// order of their keys.
func (p *Proxy) SortedChildren(h tree.Handle) []tree.Handle {
	children := p.model.Children(h)
	out := make([]tree.Handle, 0, len(children))
	keys := make(map[tree.Handle]string, len(children))
	for _, child := range children {
		if !p.Accepts(child) {
			continue
		}
		n, _ := p.model.Node(child)
		keys[child] = n.Key
		out = append(out, child)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return NaturalLess(keys[out[i]], keys[out[j]])
	})
	return out
}

// Rows flattens the visible tree, descending only into expanded nodes.
func (p *Proxy) Rows() []Row {
	var rows []Row
	var walk func(parent tree.Handle, depth int)
	walk = func(parent tree.Handle, depth int) {
		for _, h := range p.SortedChildren(parent) {
			n, _ := p.model.Node(h)
			rows = append(rows, Row{Handle: h, Node: n, Depth: depth})
			if n.State == tree.Expanded {
				walk(h, depth+1)
			}
		}
	}
	walk(p.model.Root(), 0)
	return rows
}
