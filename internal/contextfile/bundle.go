// Package contextfile parses line-oriented context-definition files into an
// immutable bundle of named documents, persona ids and an initial prompt
// template. One bad document reference never aborts the whole parse; it is
// recorded as a warning and parsing continues.
package contextfile

import (
	"fmt"
	"strings"
)

// Document is a named piece of grounding material loaded from disk.
// Immutable once loaded.
type Document struct {
	ID       string
	Content  string
	Category string
}

// Warning records a non-fatal per-document load failure.
type Warning struct {
	ID   string
	Path string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("document %q (%s): %v", w.ID, w.Path, w.Err)
}

// Bundle is the read-only aggregate produced by Load. It is assembled once at
// startup and never mutated afterwards.
type Bundle struct {
	docs       map[string]Document
	order      []string // document ids in declaration order
	personaIDs []string // persona ids in declaration order
	template   string
	warnings   []Warning
}

// Document returns the document with the given id.
func (b *Bundle) Document(id string) (Document, bool) {
	doc, ok := b.docs[id]
	return doc, ok
}

// DocumentIDs returns all document ids in declaration order.
func (b *Bundle) DocumentIDs() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// PersonaIDs returns the ids declared under a personas category, in order.
func (b *Bundle) PersonaIDs() []string {
	out := make([]string, len(b.personaIDs))
	copy(out, b.personaIDs)
	return out
}

// HasPersona reports whether id is a member of the bundle's persona set.
func (b *Bundle) HasPersona(id string) bool {
	for _, p := range b.personaIDs {
		if p == id {
			return true
		}
	}
	return false
}

// PromptTemplate returns the initial prompt template, empty if none was declared.
func (b *Bundle) PromptTemplate() string {
	return b.template
}

// Warnings returns the non-fatal load warnings collected during parsing.
func (b *Bundle) Warnings() []Warning {
	out := make([]Warning, len(b.warnings))
	copy(out, b.warnings)
	return out
}

// GroundingText renders all non-persona documents, grouped under their
// category headings, for use as backend grounding material. Persona documents
// are excluded; the active persona's document is supplied separately.
func (b *Bundle) GroundingText() string {
	var sb strings.Builder
	lastCategory := ""
	for _, id := range b.order {
		doc := b.docs[id]
		if b.HasPersona(id) {
			continue
		}
		if doc.Category != "" && doc.Category != lastCategory {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("# " + doc.Category + "\n\n")
			lastCategory = doc.Category
		}
		sb.WriteString("## " + doc.ID + "\n\n")
		sb.WriteString(strings.TrimRight(doc.Content, "\n"))
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
