package tree

import (
	"fmt"
	"image"

	"github.com/bd-pipeline/bd-loader/pkg/models"
)

// Handle addresses a node in the arena.
type Handle struct {
	index uint32
	gen   uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.index, h.gen)
}

// EntityType tags what a node stands for.
type EntityType int

const (
	AssetType EntityType = iota
	AssetName
)

func (e EntityType) String() string {
	switch e {
	case AssetType:
		return "asset-type"
	case AssetName:
		return "asset"
	default:
		return "unknown"
	}
}

// LoadingState tracks the children request of a node.
type LoadingState int

const (
	NotLoaded LoadingState = iota + 1
	InProgress
	Loaded
)

func (s LoadingState) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case InProgress:
		return "in-progress"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// ItemState selects which decoration a row shows.
type ItemState int

const (
	Normal ItemState = iota
	Expanded
)

// IconState tracks the icon request of a leaf.
type IconState int

const (
	IconNone IconState = iota
	IconLoading
	IconLoaded
)

// Node is one row of the tree.
type Node struct {
	Label      string
	Entity     EntityType
	Expandable bool
	Key        string
	Loading    LoadingState
	State      ItemState

	// TypeName is the payload of an AssetType node, Asset the payload of a leaf.
	TypeName string
	Asset    *models.AssetInfo

	Icon      image.Image
	IconState IconState

	parent   Handle
	children []Handle
}

// IsLeaf reports whether the node is an asset row.
func (n *Node) IsLeaf() bool {
	return n.Entity == AssetName
}
