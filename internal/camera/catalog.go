// Package camera holds the camera catalog: ids, display names and feed links.
package camera

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/firewatch-dev/firewatch/internal/errors"
)

//go:embed cameras.json
var builtinCatalog []byte

// ErrInvalidCatalog is returned for unreadable or malformed catalog files.
var ErrInvalidCatalog = errors.NewKind("invalid camera catalog", errors.CategoryConfiguration)

// Camera is one entry of the catalog.
type Camera struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
}

// rawCamera accepts both the scraper's {id,title,url} and {id,name,link}.
type rawCamera struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Link  string `json:"link"`
}

// Catalog is a read-only camera index.
type Catalog struct {
	cameras []Camera
	byID    map[string]Camera
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("camera: built-in catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrInvalidCatalog, err)).
			Component("camera").
			Context("path", path).
			Build()
	}
	return Parse(data)
}

// Parse decodes a JSON array of cameras. Entries without an id are skipped and
// later duplicates replace earlier ones.
func Parse(data []byte) (*Catalog, error) {
	var raw []rawCamera
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", ErrInvalidCatalog, err)).
			Component("camera").
			Build()
	}
	cams := make([]Camera, 0, len(raw))
	for _, r := range raw {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		cams = append(cams, Camera{
			ID:   id,
			Name: firstNonEmpty(r.Title, r.Name, id),
			Link: firstNonEmpty(r.URL, r.Link),
		})
	}
	return New(cams), nil
}

// New builds a catalog from cameras.
func New(cams []Camera) *Catalog {
	c := &Catalog{byID: make(map[string]Camera, len(cams))}
	for _, cam := range cams {
		if _, dup := c.byID[cam.ID]; !dup {
			c.cameras = append(c.cameras, cam)
		} else {
			i := slices.IndexFunc(c.cameras, func(x Camera) bool { return x.ID == cam.ID })
			c.cameras[i] = cam
		}
		c.byID[cam.ID] = cam
	}
	return c
}

// Get returns the camera with the given id.
func (c *Catalog) Get(id string) (Camera, bool) {
	cam, ok := c.byID[id]
	return cam, ok
}

// DisplayName returns the camera's name, or the id itself for unknown cameras.
func (c *Catalog) DisplayName(id string) string {
	if cam, ok := c.Get(id); ok {
		return cam.Name
	}
	return id
}

// All returns the cameras in catalog order.
func (c *Catalog) All() []Camera {
	return slices.Clone(c.cameras)
}

// IDs returns every camera id in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.cameras))
	for i, cam := range c.cameras {
		ids[i] = cam.ID
	}
	return ids
}

// Len reports the number of cameras.
func (c *Catalog) Len() int {
	return len(c.cameras)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
