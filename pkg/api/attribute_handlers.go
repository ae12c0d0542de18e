package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pantry/pkg/httputil"
	"github.com/platinummonkey/pantry/pkg/observability"
)

// AttributeHandlers serves the list/create endpoints of tags or ingredients
type AttributeHandlers struct {
	kind  AttributeKind
	store AttributeStore
}

// NewAttributeHandlers creates handlers for one attribute kind
func NewAttributeHandlers(kind AttributeKind, store AttributeStore) *AttributeHandlers {
	return &AttributeHandlers{kind: kind, store: store}
}

// Path returns the collection path, e.g. /recipe/tags/
func (h *AttributeHandlers) Path() string {
	return "/recipe/" + string(h.kind) + "s/"
}

// RegisterRoutes registers the attribute routes on an authenticated router
func (h *AttributeHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(h.Path(), h.list).Methods(http.MethodGet)
	router.HandleFunc(h.Path(), h.create).Methods(http.MethodPost)
}

// list handles GET /api/recipe/{kind}s/
func (h *AttributeHandlers) list(w http.ResponseWriter, r *http.Request) {
	assignedOnly, err := httputil.ParseQueryBool(r, "assigned_only", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	attrs, err := h.store.ListAttributes(r.Context(), caller(r).UserID(), assignedOnly)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if attrs == nil {
		attrs = []*Attribute{}
	}
	httputil.WriteSuccess(w, attrs)
}

// create handles POST /api/recipe/{kind}s/
func (h *AttributeHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		httputil.WriteValidationError(w, "invalid "+string(h.kind), map[string]string{"name": msgFieldRequired})
		return
	case len(req.Name) > maxNameLength:
		httputil.WriteValidationError(w, "invalid "+string(h.kind), map[string]string{"name": msgMaxLength})
		return
	}

	attr := &Attribute{Name: req.Name, UserID: caller(r).UserID()}
	if err := h.store.CreateAttribute(r.Context(), attr); err != nil {
		writeStoreError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("kind", string(h.kind)).
		WithField("attribute_id", attr.ID).
		Debug("attribute created")
	httputil.WriteCreated(w, attr)
}
