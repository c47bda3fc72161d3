// Package index implements the Index Manager: a primary-key map and
// per-field equality indexes, maintained per collection. Callers hold the
// database-wide lock; this package does no locking of its own.
package index

import (
	"strconv"

	"github.com/kartikbazzad/docstore/internal/predicate"
)

type Document = predicate.Document

// Collection holds one collection's primary and secondary indexes plus
// the set of fields registered for secondary indexing.
type Collection struct {
	primary          map[string]Document
	secondary        map[string]map[string][]Document
	registeredFields map[string]bool
}

func newCollection() *Collection {
	return &Collection{
		primary:          make(map[string]Document),
		secondary:        make(map[string]map[string][]Document),
		registeredFields: make(map[string]bool),
	}
}

// Manager owns one Collection per collection name.
type Manager struct {
	collections map[string]*Collection
}

func NewManager() *Manager {
	return &Manager{collections: make(map[string]*Collection)}
}

func (m *Manager) collection(name string) *Collection {
	c, ok := m.collections[name]
	if !ok {
		c = newCollection()
		m.collections[name] = c
	}
	return c
}

// Stringify renders a field value for secondary-index keys. Strings pass
// through unchanged; numbers render as their decimal form. Any other
// type, or a missing field, yields ("", false) and is omitted from the
// index.
func Stringify(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	default:
		return "", false
	}
}

// RegisteredFields returns the fields with a secondary index on name.
func (m *Manager) RegisteredFields(name string) []string {
	c := m.collection(name)
	fields := make([]string, 0, len(c.registeredFields))
	for f := range c.registeredFields {
		fields = append(fields, f)
	}
	return fields
}

func (m *Manager) IsRegistered(name, field string) bool {
	return m.collection(name).registeredFields[field]
}

// Get returns the document for _id, or (nil, false) if absent.
func (m *Manager) Get(name, id string) (Document, bool) {
	d, ok := m.collection(name).primary[id]
	return d, ok
}

// Lookup returns the documents indexed under field=value on name.
func (m *Manager) Lookup(name, field, value string) ([]Document, bool) {
	c := m.collection(name)
	byValue, ok := c.secondary[field]
	if !ok {
		return nil, false
	}
	docs, ok := byValue[value]
	return docs, ok
}

// Rebuild clears and rebuilds both the primary index and every registered
// secondary index for name from docs. Used after a full-collection
// replacement (update's rewrite, or recovery's replay finalization).
func (m *Manager) Rebuild(name string, docs []Document) {
	c := m.collection(name)
	c.primary = make(map[string]Document, len(docs))
	c.secondary = make(map[string]map[string][]Document, len(c.registeredFields))
	for field := range c.registeredFields {
		c.secondary[field] = make(map[string][]Document)
	}

	for _, d := range docs {
		id, _ := d["_id"].(string)
		if id == "" {
			continue
		}
		c.primary[id] = d
		for field := range c.registeredFields {
			m.indexInsert(c, field, d)
		}
	}
}

// OnInsert incrementally maintains the primary index and every registered
// secondary index for a single newly-live document.
func (m *Manager) OnInsert(name string, doc Document) {
	c := m.collection(name)
	id, _ := doc["_id"].(string)
	if id == "" {
		return
	}
	c.primary[id] = doc
	for field := range c.registeredFields {
		m.indexInsert(c, field, doc)
	}
}

// OnDelete removes doc from the primary index and every secondary index
// it participates in.
func (m *Manager) OnDelete(name string, doc Document) {
	c := m.collection(name)
	id, _ := doc["_id"].(string)
	if id != "" {
		delete(c.primary, id)
	}
	for field := range c.registeredFields {
		m.indexRemove(c, field, doc)
	}
}

func (m *Manager) indexInsert(c *Collection, field string, doc Document) {
	value, ok := Stringify(doc[field])
	if !ok {
		return
	}
	byValue, ok := c.secondary[field]
	if !ok {
		byValue = make(map[string][]Document)
		c.secondary[field] = byValue
	}
	byValue[value] = append(byValue[value], doc)
}

func (m *Manager) indexRemove(c *Collection, field string, doc Document) {
	value, ok := Stringify(doc[field])
	if !ok {
		return
	}
	byValue, ok := c.secondary[field]
	if !ok {
		return
	}
	id, _ := doc["_id"].(string)
	docs := byValue[value]
	for i, d := range docs {
		if dID, _ := d["_id"].(string); dID == id {
			byValue[value] = append(docs[:i], docs[i+1:]...)
			break
		}
	}
	if len(byValue[value]) == 0 {
		delete(byValue, value)
	}
}

// RegisterField marks field as indexed on name without backfilling.
// Recovery uses this to restore registrations from the _indexes snapshot
// before any collection's documents are loaded; Rebuild does the actual
// indexing once they are.
func (m *Manager) RegisterField(name, field string) {
	c := m.collection(name)
	c.registeredFields[field] = true
	if _, ok := c.secondary[field]; !ok {
		c.secondary[field] = make(map[string][]Document)
	}
}

// Declare idempotently registers field for secondary indexing on name and
// backfills from docs. Returns false if the field was already registered
// (declare is a no-op, not an error, on repeat).
func (m *Manager) Declare(name, field string, docs []Document) bool {
	c := m.collection(name)
	if c.registeredFields[field] {
		return false
	}
	m.RegisterField(name, field)
	for _, d := range docs {
		m.indexInsert(c, field, d)
	}
	return true
}

// AllDeclarations returns the full {collection, field} set, for persisting
// the _indexes snapshot.
func (m *Manager) AllDeclarations() []Declaration {
	var decls []Declaration
	for name, c := range m.collections {
		for field := range c.registeredFields {
			decls = append(decls, Declaration{Collection: name, Field: field})
		}
	}
	return decls
}

type Declaration struct {
	Collection string `json:"collection"`
	Field      string `json:"field"`
}
