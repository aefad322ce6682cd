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
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/itemhub/utils"
)

const ProcessTimeHeader = "X-Process-Time"

// responseWriter records the status code and stamps the processing time
// header right before the headers go out.
type responseWriter struct {
	http.ResponseWriter
	start       time.Time
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter, start time.Time) *responseWriter {
	return &responseWriter{ResponseWriter: w, start: start, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.Header().Set(ProcessTimeHeader, strconv.FormatFloat(time.Since(rw.start).Seconds(), 'f', 6, 64))
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger writes one access log line per request. 5xx responses log at
// error level, 4xx at warn.
func Logger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w, start)

			next.ServeHTTP(wrapped, r)
			if !wrapped.wroteHeader {
				wrapped.WriteHeader(http.StatusOK)
			}

			fields := logrus.Fields{
				"request_id":   GetRequestID(r.Context()),
				"client_ip":    clientIP(r),
				"req_method":   r.Method,
				"req_uri":      r.URL.RequestURI(),
				"status_code":  wrapped.status,
				"latency_time": utils.Since(start),
			}
			if traceID := GetTraceID(r.Context()); traceID != "" {
				fields["trace_id"] = traceID
			}

			entry := logger.WithFields(fields)
			switch {
			case wrapped.status >= http.StatusInternalServerError:
				entry.Error("http request")
			case wrapped.status >= http.StatusBadRequest:
				entry.Warn("http request")
			default:
				entry.Info("http request")
			}
		})
	}
}
