package router

// Catalog lists the shoe models the router treats as known.
type Catalog interface {
	Models() []string
}

// modelSource exposes the shoe models currently held in the document store.
type modelSource interface {
	ShoeModels() []string
}
