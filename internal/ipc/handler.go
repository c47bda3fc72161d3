package ipc

import (
	"encoding/json"

	"github.com/kartikbazzad/docstore/internal/auth"
	derrors "github.com/kartikbazzad/docstore/internal/errors"
	"github.com/kartikbazzad/docstore/internal/store"
)

// Handler is the central command processing pipeline: ingest the parsed
// request, authenticate, authorize, dispatch to the Collection
// Controller, and shape a response. It holds no state of its own beyond
// a reference to the store.
type Handler struct {
	store *store.Store
}

func NewHandler(s *store.Store) *Handler {
	return &Handler{store: s}
}

// Handle processes one decoded request and returns the response to send
// back. AuthDenied and Forbidden are both decided here, never inside the
// store — the storage layer has no concept of a caller's role.
func (h *Handler) Handle(req *Request) *Response {
	role := h.store.Authenticate(req.Auth)
	if role == auth.RoleNone {
		return errorResponse(derrors.ErrAuthDenied.Error())
	}

	if req.Action == "exit" {
		return &Response{Status: StatusGoodbye, Message: "closing connection"}
	}

	if req.Action != "create_user" && !auth.HasPermission(role, req.Action) {
		return errorResponse(derrors.ErrForbidden.Error() + " for action " + req.Action)
	}

	switch req.Action {
	case "create_user":
		return h.handleCreateUser(role, req)
	case "insert":
		return h.handleInsert(req)
	case "upsert":
		return h.handleUpsert(req)
	case "find":
		return h.handleFind(req)
	case "count":
		return h.handleCount(req)
	case "update":
		return h.handleUpdate(req)
	case "delete":
		return h.handleDelete(req)
	case "set_schema":
		return h.handleSetSchema(req)
	case "create_index":
		return h.handleCreateIndex(req)
	case "compact":
		return h.handleCompact(req)
	default:
		return errorResponse(derrors.ErrUnknownAction.Error() + ": " + req.Action)
	}
}

func (h *Handler) handleCreateUser(role auth.Role, req *Request) *Response {
	if role != auth.RoleAdmin {
		return errorResponse(derrors.ErrForbidden.Error() + ": create_user requires admin role")
	}
	if req.Key == "" || req.Role == "" {
		return errorResponse(derrors.ErrMissingField.Error() + ": key or role")
	}
	if !h.store.CreateUser(req.Key, req.Role) {
		return errorResponse("failed to persist user")
	}
	return okResponse()
}

func (h *Handler) handleInsert(req *Request) *Response {
	doc, err := decodeObject(req.Data)
	if err != nil || doc == nil {
		return errorResponse("missing or invalid field: data")
	}
	if _, ok := h.store.Insert(req.Collection, doc); !ok {
		return errorResponse("insert failed: schema violation or I/O error")
	}
	return okResponse()
}

func (h *Handler) handleUpsert(req *Request) *Response {
	query, err := decodeObject(req.Query)
	if err != nil {
		return errorResponse("invalid field: query")
	}
	doc, err := decodeObject(req.Data)
	if err != nil || doc == nil {
		return errorResponse("missing or invalid field: data")
	}
	if !h.store.Upsert(req.Collection, query, doc) {
		return errorResponse("upsert failed")
	}
	return okResponse()
}

func (h *Handler) handleFind(req *Request) *Response {
	query, err := decodeObject(req.Query)
	if err != nil {
		return errorResponse("invalid field: query")
	}
	sortSpec, err := decodeObject(req.Sort)
	if err != nil {
		return errorResponse("invalid field: sort")
	}
	projection, err := decodeObject(req.Projection)
	if err != nil {
		return errorResponse("invalid field: projection")
	}

	results := h.store.Find(req.Collection, query, sortSpec, projection, req.Limit, req.Skip)
	data, err := json.Marshal(results)
	if err != nil {
		return errorResponse("failed to encode results")
	}
	return &Response{Status: StatusOK, Data: data}
}

func (h *Handler) handleCount(req *Request) *Response {
	query, err := decodeObject(req.Query)
	if err != nil {
		return errorResponse("invalid field: query")
	}
	n := h.store.Count(req.Collection, query)
	return &Response{Status: StatusOK, Count: &n}
}

func (h *Handler) handleUpdate(req *Request) *Response {
	query, err := decodeObject(req.Query)
	if err != nil || query == nil {
		return errorResponse("missing or invalid field: query")
	}
	update, err := decodeObject(req.Update)
	if err != nil || update == nil {
		return errorResponse("missing or invalid field: update")
	}
	if !h.store.Update(req.Collection, query, update) {
		return errorResponse("update failed: collection not found or I/O error")
	}
	return okResponse()
}

func (h *Handler) handleDelete(req *Request) *Response {
	query, err := decodeObject(req.Query)
	if err != nil || query == nil {
		return errorResponse("missing or invalid field: query")
	}
	if !h.store.Delete(req.Collection, query) {
		return errorResponse("no documents matched")
	}
	return okResponse()
}

func (h *Handler) handleSetSchema(req *Request) *Response {
	schema, err := decodeObject(req.Schema)
	if err != nil || schema == nil {
		return errorResponse("missing or invalid field: schema")
	}
	if !h.store.SetSchema(req.Collection, schema) {
		return errorResponse("failed to persist schema")
	}
	return okResponse()
}

func (h *Handler) handleCreateIndex(req *Request) *Response {
	if req.Field == "" {
		return errorResponse("missing required field: field")
	}
	if !h.store.CreateIndex(req.Collection, req.Field) {
		return errorResponse("index creation failed")
	}
	return okResponse()
}

func (h *Handler) handleCompact(req *Request) *Response {
	if !h.store.Compact(req.Collection) {
		return errorResponse("compaction failed")
	}
	return okResponse()
}

func decodeObject(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
