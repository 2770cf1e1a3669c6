package main

// Document is the single in-memory draft being worked on. It is owned by the
// conversation loop and mutated only through the update tool.
type Document struct {
	content string
}

// NewDocument returns an empty draft.
func NewDocument() *Document {
	return &Document{}
}

// Read returns the current draft content.
func (d *Document) Read() string {
	return d.content
}

// Replace overwrites the draft. The model supplies the complete new text on
// every update; there are no patch semantics.
func (d *Document) Replace(content string) {
	d.content = content
}
