package db

// Document is one row of the documents table.
type Document struct {
	Link   string
	Title  string
	Author string
	Body   string
	Year   int
}

// SourceEdge links a document to its external catalog reference.
type SourceEdge struct {
	Link string
	Ref  string
}

// SourceDescriptor is the material type a catalog assigns to a document.
type SourceDescriptor struct {
	Link       string
	Descriptor string
}
