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
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/middleware"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/types"
)

// CurrentUser GET /users/me
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.UserFrom(r.Context()))
}

// UpdateCurrentUser lets a user change their own email and password.
// PATCH /users/me
func (h *Handler) UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	h.updateUser(w, r, auth.UserFrom(r.Context()), true)
}

// ListUsers GET /users?page=&page_size=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	size, err := queryInt(r, "page_size", 10)
	if err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result, err := h.auth.Users().Page(r.Context(), session(r), types.NewDefaultPageRequest(page, size))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetUser GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userByID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser lets a superuser change any field, privilege flags included.
// PATCH /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userByID(w, r)
	if !ok {
		return
	}
	h.updateUser(w, r, user, false)
}

// DeleteUser removes the user with their items and tokens.
// DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userByID(w, r)
	if !ok {
		return
	}
	if err := h.auth.DeleteUser(r.Context(), session(r), user.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request, user *models.User, safe bool) {
	var in models.UserUpdate
	if !decodeJSON(w, r, &in) {
		return
	}

	updated, err := h.auth.UpdateUser(r.Context(), session(r), user, in, safe)
	switch {
	case errors.Is(err, auth.ErrUserAlreadyExists):
		middleware.WriteDetail(w, http.StatusBadRequest, "UPDATE_USER_EMAIL_ALREADY_EXISTS")
	case errors.Is(err, auth.ErrInvalidPassword):
		middleware.WriteDetail(w, http.StatusBadRequest, "UPDATE_USER_INVALID_PASSWORD")
	case err != nil:
		h.fail(w, r, err)
	default:
		writeJSON(w, http.StatusOK, updated)
	}
}

func (h *Handler) userByID(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, "invalid user id")
		return nil, false
	}
	user, err := h.auth.Users().Get(r.Context(), session(r), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if user == nil {
		writeDetail(w, http.StatusNotFound)
		return nil, false
	}
	return user, true
}
