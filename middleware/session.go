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
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/itemhub/database"
	"github.com/uptrace/bun"
)

// Session opens one database session per request and releases it when the
// handler returns. Handlers read it back with database.SessionFrom.
func Session(provider *database.SessionProvider, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := provider.Scope(r.Context(), func(ctx context.Context, _ bun.IDB) error {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			})
			if err != nil {
				logger.WithFields(logrus.Fields{
					"request_id": GetRequestID(r.Context()),
					"error":      err,
				}).Error("failed to open database session")
				WriteDetail(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
			}
		})
	}
}
