/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/middleware"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/types"
)

// ListItems returns every item to a superuser and only their own items to
// anyone else.
// GET /items?skip=&limit=
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", types.DefaultLimit)
	if err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	window := types.NewWindow(skip, limit)

	user := auth.UserFrom(r.Context())
	var items []*models.Item
	if user.IsSuperuser {
		items, err = h.items.GetMulti(r.Context(), session(r), window)
	} else {
		items, err = h.items.GetMultiByOwner(r.Context(), session(r), user.ID, window)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateItem POST /items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in models.ItemCreate
	if !decodeJSON(w, r, &in) {
		return
	}
	item, err := h.items.CreateWithOwner(r.Context(), session(r), in, auth.UserFrom(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// GetItem GET /items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateItem applies a partial update; owner and id never change.
// PUT /items/{id}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	var in models.ItemUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	updated, err := h.items.Update(r.Context(), session(r), item, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteItem answers with the item as it was before removal.
// DELETE /items/{id}
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	removed, err := h.items.Remove(r.Context(), session(r), item.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// ownedItem loads the item named in the path. Callers that neither own it
// nor are superusers get 400.
func (h *Handler) ownedItem(w http.ResponseWriter, r *http.Request) (*models.Item, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, "invalid item id")
		return nil, false
	}
	item, err := h.items.Get(r.Context(), session(r), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if item == nil {
		writeDetail(w, http.StatusNotFound)
		return nil, false
	}
	user := auth.UserFrom(r.Context())
	if !user.IsSuperuser && item.OwnerID != user.ID {
		writeDetail(w, http.StatusBadRequest)
		return nil, false
	}
	return item, true
}
