package pipeline

import (
	"github.com/shopspring/decimal"

	"salesdash/internal/dataset"
)

// HierarchyLevels is the drill-down path, outermost first.
var HierarchyLevels = []string{dataset.ColRegion, dataset.ColCategory, dataset.ColSubCategory, dataset.ColState}

// Node is one level of the drill-down tree
type Node struct {
	Label    string          `json:"label"`
	Level    string          `json:"level,omitempty"`
	Sales    decimal.Decimal `json:"sales"`
	Children []*Node         `json:"children,omitempty"`

	index map[string]*Node
}

// Hierarchy holds Sales per (Region, Category, Sub-Category, State) both as
// flat leaves and as a tree with subtotals.
type Hierarchy struct {
	Levels []string `json:"levels"`
	Leaves []Group  `json:"leaves"`
	Root   *Node    `json:"root"`
}

// BuildHierarchy groups the view along HierarchyLevels.
func BuildHierarchy(v dataset.View) (*Hierarchy, error) {
	leaves, err := GroupSum(v, HierarchyLevels, dataset.ColSales)
	if err != nil {
		return nil, err
	}

	root := &Node{Label: "Total", Sales: decimal.Zero}
	for _, leaf := range leaves {
		root.Sales = root.Sales.Add(leaf.Sales)
		node := root
		for depth, label := range leaf.Keys {
			node = node.child(label, HierarchyLevels[depth])
			node.Sales = node.Sales.Add(leaf.Sales)
		}
	}
	return &Hierarchy{Levels: HierarchyLevels, Leaves: leaves, Root: root}, nil
}

func (n *Node) child(label, level string) *Node {
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	if c, ok := n.index[label]; ok {
		return c
	}
	c := &Node{Label: label, Level: level, Sales: decimal.Zero}
	n.index[label] = c
	n.Children = append(n.Children, c)
	return c
}

// Share returns the node's Sales as a fraction of parent, for block sizing.
func (n *Node) Share(parent *Node) float64 {
	if parent == nil || parent.Sales.IsZero() {
		return 0
	}
	return n.Sales.Div(parent.Sales).InexactFloat64()
}
