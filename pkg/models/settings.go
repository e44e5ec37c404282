package models

// Settings represents the loader configuration file
type Settings struct {
	Catalog CatalogSettings `yaml:"catalog" toml:"catalog"`
	UI      UISettings      `yaml:"ui" toml:"ui"`
	Shelf   ShelfSettings   `yaml:"shelf" toml:"shelf"`
	Icons   IconSettings    `yaml:"icons" toml:"icons"`
}

// CatalogSettings controls which parts of the catalog are browsable
type CatalogSettings struct {
	ExcludedProjects []string `yaml:"excluded_projects" toml:"excluded_projects"`
	Accessor         string   `yaml:"accessor" toml:"accessor"` // "graphql" or "hooks"
}

// UISettings controls UI preferences
type UISettings struct {
	ShowDetails bool              `yaml:"show_details" toml:"show_details"`
	TypeIcons   map[string]string `yaml:"type_icons" toml:"type_icons"`
	FolderIcon  string            `yaml:"folder_icon" toml:"folder_icon"`
	FolderOpen  string            `yaml:"folder_open_icon" toml:"folder_open_icon"`
	AssetIcon   string            `yaml:"asset_icon" toml:"asset_icon"`
}

// ShelfSettings controls the host shelf button
type ShelfSettings struct {
	Suffix string `yaml:"suffix" toml:"suffix"`
	Label  string `yaml:"label" toml:"label"`
	Image  string `yaml:"image" toml:"image"`
}

// IconSettings controls icon fetching and post-processing
type IconSettings struct {
	Workers int `yaml:"workers" toml:"workers"`
	Width   int `yaml:"width" toml:"width"`
	Height  int `yaml:"height" toml:"height"`
	Radius  int `yaml:"radius" toml:"radius"`
}

// DefaultSettings returns the default configuration
func DefaultSettings() *Settings {
	return &Settings{
		Catalog: CatalogSettings{
			ExcludedProjects: []string{},
			Accessor:         "graphql",
		},
		UI: UISettings{
			ShowDetails: true,
			TypeIcons: map[string]string{
				"Character":   "☺",
				"Environment": "▲",
				"Prop":        "◆",
				"Set":         "▦",
			},
			FolderIcon: "▸",
			FolderOpen: "▾",
			AssetIcon:  "▣",
		},
		Shelf: ShelfSettings{
			Suffix: "BDPipeline",
			Label:  "Loader",
			Image:  "bd.loader.svg",
		},
		Icons: IconSettings{
			Workers: 12,
			Width:   103,
			Height:  58,
			Radius:  4,
		},
	}
}
