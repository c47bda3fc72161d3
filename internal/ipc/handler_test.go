package ipc

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/kartikbazzad/docstore/internal/logger"
	"github.com/kartikbazzad/docstore/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	dir := t.TempDir()
	s := store.New(dir, logger.New(io.Discard, logger.LevelError, "[test]"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return NewHandler(s), "root"
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestHandle_UnauthenticatedRequestIsRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := h.Handle(&Request{Action: "find", Collection: "users", Auth: "bogus-key"})
	if resp.Status != StatusError {
		t.Fatalf("got status %q, want error", resp.Status)
	}
}

func TestHandle_InsertFindRoundTrip(t *testing.T) {
	h, admin := newTestHandler(t)

	insertResp := h.Handle(&Request{
		Action:     "insert",
		Auth:       admin,
		Collection: "users",
		Data:       raw(t, map[string]interface{}{"name": "alice"}),
	})
	if insertResp.Status != StatusOK {
		t.Fatalf("insert failed: %s", insertResp.Message)
	}

	findResp := h.Handle(&Request{
		Action:     "find",
		Auth:       admin,
		Collection: "users",
		Query:      raw(t, map[string]interface{}{"name": "alice"}),
	})
	if findResp.Status != StatusOK {
		t.Fatalf("find failed: %s", findResp.Message)
	}

	var results []map[string]interface{}
	if err := json.Unmarshal(findResp.Data, &results); err != nil {
		t.Fatalf("decode find results: %v", err)
	}
	if len(results) != 1 || results[0]["name"] != "alice" {
		t.Fatalf("got %v, want one document named alice", results)
	}
}

func TestHandle_ReadOnlyRoleCannotInsert(t *testing.T) {
	h, admin := newTestHandler(t)

	createResp := h.Handle(&Request{Action: "create_user", Auth: admin, Key: "viewer", Role: "read_only"})
	if createResp.Status != StatusOK {
		t.Fatalf("create_user failed: %s", createResp.Message)
	}

	resp := h.Handle(&Request{
		Action:     "insert",
		Auth:       "viewer",
		Collection: "users",
		Data:       raw(t, map[string]interface{}{"name": "bob"}),
	})
	if resp.Status != StatusError {
		t.Fatalf("read-only role should be forbidden from insert, got status %q", resp.Status)
	}
}

func TestHandle_NonAdminCannotCreateUser(t *testing.T) {
	h, admin := newTestHandler(t)

	h.Handle(&Request{Action: "create_user", Auth: admin, Key: "writer", Role: "read_write"})

	resp := h.Handle(&Request{Action: "create_user", Auth: "writer", Key: "x", Role: "read_only"})
	if resp.Status != StatusError {
		t.Fatalf("non-admin should be forbidden from create_user, got %q", resp.Status)
	}
}

func TestHandle_ExitReturnsGoodbyeWithoutDispatching(t *testing.T) {
	h, admin := newTestHandler(t)

	resp := h.Handle(&Request{Action: "exit", Auth: admin})
	if resp.Status != StatusGoodbye {
		t.Fatalf("got status %q, want goodbye", resp.Status)
	}
}

func TestHandle_UnknownAction(t *testing.T) {
	h, admin := newTestHandler(t)

	resp := h.Handle(&Request{Action: "frobnicate", Auth: admin})
	if resp.Status != StatusError {
		t.Fatalf("got status %q, want error for an unknown action", resp.Status)
	}
}

func TestHandle_CountReturnsCount(t *testing.T) {
	h, admin := newTestHandler(t)
	h.Handle(&Request{Action: "insert", Auth: admin, Collection: "users", Data: raw(t, map[string]interface{}{"name": "a"})})
	h.Handle(&Request{Action: "insert", Auth: admin, Collection: "users", Data: raw(t, map[string]interface{}{"name": "b"})})

	resp := h.Handle(&Request{Action: "count", Auth: admin, Collection: "users"})
	if resp.Status != StatusOK || resp.Count == nil || *resp.Count != 2 {
		t.Fatalf("got %+v, want count 2", resp)
	}
}
