// Package store implements the Collection Controller: in-memory document
// arrays, the three-tier query planner, the insert/update/delete/upsert
// pipelines, tombstone deletion, the schema registry, and the
// auto-compaction heuristic. It is the single point that coordinates the
// Persistence Engine, Index Manager, Auth Store, and Predicate Engine
// under one database-wide reader-writer lock.
package store

import (
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/kartikbazzad/docstore/internal/auth"
	"github.com/kartikbazzad/docstore/internal/engine"
	derrors "github.com/kartikbazzad/docstore/internal/errors"
	"github.com/kartikbazzad/docstore/internal/idgen"
	"github.com/kartikbazzad/docstore/internal/index"
	"github.com/kartikbazzad/docstore/internal/logger"
	"github.com/kartikbazzad/docstore/internal/predicate"
)

type Document = predicate.Document

const (
	ReservedAuth    = "_auth"
	ReservedSchemas = "_schemas"
	ReservedIndexes = "_indexes"
)

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidCollectionName reports whether name matches [A-Za-z0-9_]+.
func ValidCollectionName(name string) bool {
	return name != "" && collectionNamePattern.MatchString(name)
}

func isReserved(name string) bool {
	return name == ReservedAuth || name == ReservedSchemas || name == ReservedIndexes
}

// Store is the Collection Controller. One global RWMutex guards the
// in-memory document arrays, the schema registry, the index structures,
// and the auth cache — matching the single-global-lock concurrency model;
// there is no per-partition or per-collection locking.
type Store struct {
	mu sync.RWMutex

	eng   *engine.Engine
	idx   *index.Manager
	users *auth.Store
	log   *logger.Logger

	schemas     map[string]Document
	collections map[string][]Document // name -> live documents in insertion order
}

func New(basePath string, log *logger.Logger) *Store {
	return &Store{
		eng:         engine.New(basePath),
		idx:         index.NewManager(),
		users:       auth.NewStore(),
		log:         log,
		schemas:     make(map[string]Document),
		collections: make(map[string][]Document),
	}
}

// Open initializes the persistence layer and replays every collection's
// log into memory. Call once at startup.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recover()
}

// Insert validates (if a schema is registered), assigns an _id if absent,
// commits to memory, updates indexes, and appends the frame to the log.
func (s *Store) Insert(name string, doc Document) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(name, doc)
}

func (s *Store) insertLocked(name string, doc Document) (Document, bool) {
	clog := s.log.With(logger.Field{Key: "collection", Value: name})

	if !ValidCollectionName(name) {
		clog.Warn("%s", derrors.ErrCollectionNameInvalid)
		return nil, false
	}
	if isReserved(name) {
		clog.Warn("%s", derrors.ErrReservedCollection)
		return nil, false
	}

	if schema, ok := s.schemas[name]; ok {
		if !predicate.Validate(doc, schema) {
			clog.Debug("%s", derrors.ErrSchemaViolation)
			return nil, false
		}
	}

	copyDoc := deepCopyDoc(doc)
	if id, _ := copyDoc["_id"].(string); id == "" {
		copyDoc["_id"] = idgen.New()
	}

	s.collections[name] = append(s.collections[name], copyDoc)
	s.idx.OnInsert(name, copyDoc)

	payload, err := json.Marshal(copyDoc)
	if err != nil {
		return nil, false
	}
	ok := s.eng.Append(name, payload)
	return copyDoc, ok
}

// Upsert holds the writer lock across both the existence check and the
// mutation, using the non-locking inner helpers — a stricter atomicity
// guarantee than a caller who composes the public Count/Update/Insert
// methods could provide.
func (s *Store) Upsert(name string, query, doc Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.countLocked(name, query) > 0 {
		return s.updateLocked(name, query, map[string]interface{}{"$set": doc})
	}
	merged := deepCopyDoc(doc)
	for k, v := range query {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	_, ok := s.insertLocked(name, merged)
	return ok
}

// Update replaces the entire in-memory collection with the Predicate
// Engine's result, then fully rebuilds both indexes and compacts the log
// with the new state as the active set. There is no per-document delta
// log; the replacement+compaction pair maintains the replay invariant
// trivially.
func (s *Store) Update(name string, query, update Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(name, query, update)
}

func (s *Store) updateLocked(name string, query, update Document) bool {
	clog := s.log.With(logger.Field{Key: "collection", Value: name})

	if !ValidCollectionName(name) {
		clog.Warn("%s", derrors.ErrCollectionNameInvalid)
		return false
	}
	if isReserved(name) {
		clog.Warn("%s", derrors.ErrReservedCollection)
		return false
	}

	current := s.collections[name]
	newDocs := predicate.Update(current, query, update)
	s.collections[name] = newDocs
	s.idx.Rebuild(name, newDocs)
	return s.compactLocked(name)
}

// Delete implements "turbo delete": identify target IDs via the fast
// tiers where possible, append a tombstone per target, and synchronously
// detach from the in-memory structures. Log compaction is deferred to the
// auto-compaction heuristic or an explicit trigger.
func (s *Store) Delete(name string, query Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isReserved(name) {
		s.log.With(logger.Field{Key: "collection", Value: name}).Warn("%s", derrors.ErrReservedCollection)
		return false
	}

	targets := s.identifyTargets(name, query)
	if len(targets) == 0 {
		return false
	}

	for _, doc := range targets {
		id, _ := doc["_id"].(string)
		tombstone := map[string]interface{}{"_id": id, "_deleted": true}
		payload, err := json.Marshal(tombstone)
		if err == nil {
			s.eng.Append(name, payload)
		}
		s.idx.OnDelete(name, doc)
		s.removeFromCollection(name, id)
	}
	return true
}

func (s *Store) removeFromCollection(name, id string) {
	docs := s.collections[name]
	for i, d := range docs {
		if docID, _ := d["_id"].(string); docID == id {
			s.collections[name] = append(docs[:i], docs[i+1:]...)
			return
		}
	}
}

// identifyTargets runs the same three-tier planner as Find, but returns
// whole documents so the caller can tombstone and detach them. Unlike
// Find, a registered field whose value has no index entry falls through
// to the full scan instead of yielding no targets.
func (s *Store) identifyTargets(name string, query Document) []Document {
	if len(query) == 1 {
		if idVal, ok := query["_id"].(string); ok {
			if doc, found := s.idx.Get(name, idVal); found {
				return []Document{doc}
			}
			return nil
		}
		for field, val := range query {
			if !s.idx.IsRegistered(name, field) {
				break
			}
			strVal, ok := index.Stringify(val)
			if !ok || strVal == "" {
				break
			}
			if docs, found := s.idx.Lookup(name, field, strVal); found {
				// Copy: Delete's OnDelete shrinks this index bucket in place.
				return append([]Document(nil), docs...)
			}
			break
		}
	}

	return predicate.Find(s.collections[name], query, nil, nil, 0, 0)
}

// Count returns the size of the collection for an absent/empty query, or
// delegates to the Predicate Engine otherwise.
func (s *Store) Count(name string, query Document) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(name, query)
}

func (s *Store) countLocked(name string, query Document) int {
	docs, ok := s.collections[name]
	if !ok {
		return 0
	}
	if len(query) == 0 {
		return len(docs)
	}
	return predicate.Count(docs, query)
}

// Find implements the three-tier query planner. Projection and sort
// always disqualify tiers 1 and 2 and force tier 3.
func (s *Store) Find(name string, query, sortSpec, projection Document, limit, skip int) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	simple := len(sortSpec) == 0 && len(projection) == 0

	if simple && len(query) == 1 {
		if idVal, ok := query["_id"].(string); ok {
			doc, found := s.idx.Get(name, idVal)
			if !found {
				s.log.With(
					logger.Field{Key: "collection", Value: name},
					logger.Field{Key: "_id", Value: idVal},
				).Debug("%s", derrors.ErrDocNotFound)
				return []Document{}
			}
			return []Document{deepCopyDoc(doc)}
		}

		for field, val := range query {
			if !s.idx.IsRegistered(name, field) {
				break
			}
			strVal, ok := index.Stringify(val)
			if !ok || strVal == "" {
				break
			}
			docs, found := s.idx.Lookup(name, field, strVal)
			if !found {
				return []Document{}
			}
			return sliceAndCopy(docs, skip, limit)
		}
	}

	return predicate.Find(s.collections[name], query, sortSpec, projection, limit, skip)
}

// SetSchema deep-copies schema into the registry, replacing any previous
// entry, and appends a frame (with an injected "collection" field) to
// _schemas.
func (s *Store) SetSchema(name string, schema Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schemas[name] = deepCopyDoc(schema)

	frame := deepCopyDoc(schema)
	frame["collection"] = name
	payload, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	return s.eng.Append(ReservedSchemas, payload)
}

// CreateIndex declares field on name (idempotent, backfilling from the
// current in-memory collection) and persists the full {collection,field}
// set by compacting _indexes down to a single snapshot frame.
func (s *Store) CreateIndex(name, field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx.Declare(name, field, s.collections[name])
	return s.persistIndexSnapshot()
}

func (s *Store) persistIndexSnapshot() bool {
	decls := s.idx.AllDeclarations()
	payload, err := json.Marshal(decls)
	if err != nil {
		return false
	}
	return s.eng.Compact(ReservedIndexes, [][]byte{payload})
}

// Compact rewrites name's log to contain exactly its current live
// documents, one frame each.
func (s *Store) Compact(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked(name)
}

func (s *Store) compactLocked(name string) bool {
	if name == ReservedSchemas {
		return s.compactSchemasLocked()
	}

	docs := s.collections[name]
	payloads := make([][]byte, 0, len(docs))
	for _, d := range docs {
		p, err := json.Marshal(d)
		if err != nil {
			continue
		}
		payloads = append(payloads, p)
	}
	return s.eng.Compact(name, payloads)
}

// compactSchemasLocked rewrites _schemas to hold exactly one frame per
// registered schema, with the collection field reinjected, mirroring how
// SetSchema persists a single entry.
func (s *Store) compactSchemasLocked() bool {
	payloads := make([][]byte, 0, len(s.schemas))
	for collection, schema := range s.schemas {
		frame := deepCopyDoc(schema)
		frame["collection"] = collection
		p, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		payloads = append(payloads, p)
	}
	return s.eng.Compact(ReservedSchemas, payloads)
}

// CreateUser hashes key, persists a user record to _auth, and updates the
// in-memory auth cache.
func (s *Store) CreateUser(key, role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(key, role)
}

// createUserLocked follows the same memory-before-durability order as
// insertLocked: the in-memory auth cache and collection are updated first,
// and only then does the log append decide whether the caller can trust
// the write as durable. A false return here means do not trust
// durability, not that the new credential failed to take effect.
func (s *Store) createUserLocked(key, role string) bool {
	hash := auth.HashKey(key)
	parsedRole := auth.ParseRole(role)

	record := map[string]interface{}{
		"_id":        idgen.New(),
		"key_hash":   hash,
		"role":       role,
		"created_at": nowUnixSeconds(),
	}

	s.users.Set(hash, parsedRole)
	s.collections[ReservedAuth] = append(s.collections[ReservedAuth], record)

	payload, err := json.Marshal(record)
	if err != nil {
		return false
	}
	return s.eng.Append(ReservedAuth, payload)
}

// Authenticate resolves a credential to a role under the reader lock.
func (s *Store) Authenticate(key string) auth.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.Authenticate(key)
}

func deepCopyDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyDoc(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}

func sliceAndCopy(docs []Document, skip, limit int) []Document {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(docs) {
		return []Document{}
	}
	end := len(docs)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	out := make([]Document, end-skip)
	for i, d := range docs[skip:end] {
		out[i] = deepCopyDoc(d)
	}
	return out
}

func nowUnixSeconds() int64 {
	return time.Now().Unix()
}
