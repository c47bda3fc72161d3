package store

import (
	"encoding/json"

	derrors "github.com/kartikbazzad/docstore/internal/errors"
	"github.com/kartikbazzad/docstore/internal/index"
	"github.com/kartikbazzad/docstore/internal/logger"
)

// recover performs the ordered startup replay documented for this engine:
// init the persistence layer, restore index registrations from the
// _indexes snapshot, replay every non-reserved collection and _schemas,
// rebuild indexes, populate the auth cache, apply the auto-compaction
// heuristic, and bootstrap a default admin if no users exist. The caller
// holds the writer lock for the duration.
func (s *Store) recover() error {
	if err := s.eng.Init(); err != nil {
		return err
	}

	names, err := s.eng.ListCollections()
	if err != nil {
		return err
	}

	if err := s.restoreIndexRegistrations(); err != nil {
		return err
	}

	for _, name := range names {
		switch name {
		case ReservedSchemas:
			if err := s.replaySchemas(); err != nil {
				return err
			}
		case ReservedIndexes:
			// Already handled by restoreIndexRegistrations.
		case ReservedAuth:
			if err := s.replayCollection(name); err != nil {
				return err
			}
			s.loadAuthCache()
		default:
			if err := s.replayCollection(name); err != nil {
				return err
			}
		}
	}

	s.applyAutoCompactionHeuristic(names)

	if s.users.Empty() {
		s.createUserLocked("root", "admin")
	}

	return nil
}

// restoreIndexRegistrations parses the _indexes log's final frame (a full
// snapshot, last writer wins) into the registered-field set.
func (s *Store) restoreIndexRegistrations() error {
	frames, err := s.eng.LoadLog(ReservedIndexes)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return nil
	}

	var decls []index.Declaration
	if err := json.Unmarshal(frames[len(frames)-1], &decls); err != nil {
		s.log.With(logger.Field{Key: "collection", Value: ReservedIndexes}).Warn("%s: %v", derrors.ErrCorruptFrame, err)
		return nil
	}

	for _, d := range decls {
		s.idx.RegisterField(d.Collection, d.Field)
	}
	return nil
}

// loadAuthCache seeds the in-memory Auth Store from _auth's replayed live
// set. Called after replayCollection so tombstoned credentials are already
// gone from s.collections[ReservedAuth].
func (s *Store) loadAuthCache() {
	for _, doc := range s.collections[ReservedAuth] {
		hash, _ := doc["key_hash"].(string)
		role, _ := doc["role"].(string)
		if hash == "" {
			continue
		}
		s.users.Load(hash, role)
	}
}

// replaySchemas processes _schemas frames through the schema-specific
// path: each frame is the schema document with an injected "collection"
// field, never an _id-keyed document, so it cannot go through the generic
// replay loop (which would discard every frame for lacking _id).
func (s *Store) replaySchemas() error {
	frames, err := s.eng.LoadLog(ReservedSchemas)
	if err != nil {
		return err
	}

	slog := s.log.With(logger.Field{Key: "collection", Value: ReservedSchemas})
	for _, raw := range frames {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			slog.Warn("%s: %v", derrors.ErrCorruptFrame, err)
			continue
		}
		collection, ok := doc["collection"].(string)
		if !ok || collection == "" {
			slog.Warn("schema frame missing collection field, skipping")
			continue
		}
		delete(doc, "collection")
		s.schemas[collection] = doc
	}
	return nil
}

// replayCollection reconstructs name's live document set from its log:
// a tombstone removes an _id from the working map; any other frame with
// a string _id inserts or replaces it; anything else is logged and
// skipped. The final array preserves first-appearance order among
// documents still live at the end of the replay.
func (s *Store) replayCollection(name string) error {
	frames, err := s.eng.LoadLog(name)
	if err != nil {
		return err
	}

	live := make(map[string]Document)
	var order []string
	seen := make(map[string]bool)

	clog := s.log.With(logger.Field{Key: "collection", Value: name})
	for _, raw := range frames {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			clog.Warn("%s: %v", derrors.ErrCorruptFrame, err)
			continue
		}

		id, ok := doc["_id"].(string)
		if !ok || id == "" {
			clog.Warn("frame missing _id, skipping")
			continue
		}

		if deleted, _ := doc["_deleted"].(bool); deleted {
			delete(live, id)
			continue
		}

		live[id] = doc
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	docs := make([]Document, 0, len(live))
	for _, id := range order {
		if d, ok := live[id]; ok {
			docs = append(docs, d)
		}
	}

	s.collections[name] = docs
	s.idx.Rebuild(name, docs)
	return nil
}

// applyAutoCompactionHeuristic runs once per collection at the end of
// recovery: if the log holds more than twice as many frames as there are
// live documents, and there are more than 100 live documents, compact.
func (s *Store) applyAutoCompactionHeuristic(names []string) {
	for _, name := range names {
		if name == ReservedIndexes {
			continue
		}

		frames, err := s.eng.LoadLog(name)
		if err != nil {
			continue
		}

		liveCount := len(s.collections[name])
		if name == ReservedSchemas {
			liveCount = len(s.schemas)
		}

		if len(frames) > 2*liveCount && liveCount > 100 {
			s.compactLocked(name)
		}
	}
}
