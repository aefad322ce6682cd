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

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/database"
	"github.com/tomoncle/itemhub/models"
	"github.com/uptrace/bun"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, db bun.IDB, token string) (*models.User, error)
}

// Authenticate resolves the bearer token, when one is sent, and stores the
// user in the request context. It must run inside Session. Requests without
// a valid token continue anonymously; RequireUser rejects them.
func Authenticate(authn Authenticator, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			db := database.SessionFrom(r.Context())
			if token == "" || db == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := authn.Authenticate(r.Context(), db, token)
			switch {
			case err == nil:
				r = r.WithContext(auth.WithUser(r.Context(), user))
			case errors.Is(err, auth.ErrUnauthorized):
				logger.WithFields(logrus.Fields{
					"client_ip":  clientIP(r),
					"req_uri":    r.URL.Path,
					"request_id": GetRequestID(r.Context()),
				}).Debug("rejected bearer token")
			default:
				logger.WithFields(logrus.Fields{
					"request_id": GetRequestID(r.Context()),
					"error":      err,
				}).Error("failed to authenticate request")
				WriteDetail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireUser answers 401 unless Authenticate found an active user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFrom(r.Context()) == nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			WriteDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperuser answers 401 for anonymous requests and 403 for regular
// users.
func RequireSuperuser(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.UserFrom(r.Context()).IsSuperuser {
			WriteDetail(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	}))
}
