package router

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Catalog modes.
const (
	CatalogStatic = "static"
	CatalogLive   = "live"
)

// DefaultKnownModels is the built-in model catalog.
var DefaultKnownModels = []string{
	"Nike LeBron 21", "Nike KD 16", "Nike GT Jump 3", "Nike GT Cut 3",
	"Adidas Harden Vol 7", "Adidas Dame 8", "Adidas Trae Young 3",
	"Jordan Luka 2", "Jordan Zion 3", "Jordan Tatum 2",
	"Under Armour Curry 11", "Under Armour Embiid 2",
	"Puma MB.03", "Puma All-Pro Nitro",
}

// StaticCatalog is a fixed list of models.
type StaticCatalog struct {
	models []string
}

// NewStaticCatalog copies models into an immutable catalog.
func NewStaticCatalog(models []string) *StaticCatalog {
	return &StaticCatalog{models: slices.Clone(models)}
}

// Models returns the configured models.
func (c *StaticCatalog) Models() []string { return c.models }

// LiveCatalog is a static list plus whatever models the document store holds right now.
type LiveCatalog struct {
	static []string
	source modelSource
}

// NewLiveCatalog creates a catalog that reads source on every lookup.
func NewLiveCatalog(static []string, source modelSource) *LiveCatalog {
	return &LiveCatalog{static: slices.Clone(static), source: source}
}

// Models returns the union of static and stored models, case-insensitively deduplicated.
func (c *LiveCatalog) Models() []string {
	all := append(slices.Clone(c.static), c.source.ShoeModels()...)
	return lo.UniqBy(all, strings.ToLower)
}
