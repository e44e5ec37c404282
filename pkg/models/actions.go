package models

// MenuAction is one entry of the item context menu.
type MenuAction struct {
	Label string
	Run   func() error
}

// ShelfButton describes a button added to a host application shelf.
type ShelfButton struct {
	Shelf      string `json:"shelf" yaml:"shelf"`
	Label      string `json:"label" yaml:"label"`
	Annotation string `json:"annotation" yaml:"annotation"`
	Image      string `json:"image" yaml:"image"`
	Command    string `json:"command" yaml:"command"`
	SourceType string `json:"source_type" yaml:"source_type"`
}
