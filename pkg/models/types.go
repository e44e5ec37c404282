package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"
)

// AssetID identifies an asset. The catalog hands out integers, hooks may use any string.
type AssetID string

// IntAssetID converts a numeric catalog id.
func IntAssetID(id int) AssetID {
	return AssetID(strconv.Itoa(id))
}

// Int returns the numeric form of the id.
func (id AssetID) Int() (int, error) {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, fmt.Errorf("asset id %q is not numeric: %w", string(id), err)
	}
	return n, nil
}

func (id AssetID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *AssetID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = AssetID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid asset id %s: %w", string(data), err)
	}
	*id = AssetID(n.String())
	return nil
}

// AssetDetails holds the per-asset data fetched on selection.
type AssetDetails struct {
	FullName   string      `json:"fullname" yaml:"fullname"`
	Version    int         `json:"version" yaml:"version"`
	CreatedAt  time.Time   `json:"created_at" yaml:"created_at"`
	ModifiedAt time.Time   `json:"modified_at" yaml:"modified_at"`
	Thumbnail  image.Image `json:"-" yaml:"-"`
}

// AssetInfo is one row of a catalog query. Details is filled in place once fetched.
type AssetInfo struct {
	ID       AssetID       `json:"id" yaml:"id"`
	Type     string        `json:"type" yaml:"type"`
	Name     string        `json:"name" yaml:"name"`
	Level    string        `json:"level,omitempty" yaml:"level,omitempty"`
	Category string        `json:"category,omitempty" yaml:"category,omitempty"`
	Icon     image.Image   `json:"-" yaml:"-"`
	Details  *AssetDetails `json:"details,omitempty" yaml:"details,omitempty"`
}

// FullName joins the non-empty type, level, category and name with underscores.
func (a *AssetInfo) FullName() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Type, a.Level, a.Category, a.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

func (a *AssetInfo) String() string {
	return fmt.Sprintf("AssetInfo(id=%s, type=%s, name=%s)", a.ID, a.Type, a.Name)
}

// AssetQuery narrows RequestAssets. Level and Category are optional.
type AssetQuery struct {
	Type     string
	Level    string
	Category string
}

// Project is the catalog scope every request runs against.
type Project struct {
	ID        int         `json:"id" yaml:"id"`
	Title     string      `json:"title" yaml:"title"`
	Thumbnail image.Image `json:"-" yaml:"-"`
}

// Key returns the root key used for hierarchical tree keys.
func (p *Project) Key() string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(p.ID)
}

// Task is the unit of work the artist has open in the host application.
type Task struct {
	ID   int    `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
}
