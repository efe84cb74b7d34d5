package domain

// Document is the unit submitted to the vector index.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Hit is a single vector search match.
type Hit struct {
	ID    string
	Score float64
}
