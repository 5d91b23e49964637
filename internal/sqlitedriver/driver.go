// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlitedriver registers the pure-Go modernc SQLite driver under
// the name "sqlite3" and builds read-only DSNs for it.
//
// Import it for side effects:
//
//	import _ "github.com/teradata-labs/quarry/internal/sqlitedriver"
package sqlitedriver

import (
	"database/sql"
	"net/url"
	"strings"

	"modernc.org/sqlite"
)

// DriverName is the database/sql driver name registered by this package.
const DriverName = "sqlite3"

func init() {
	sql.Register(DriverName, &sqlite.Driver{})
}

// ReadOnlyDSN turns a path or file: URI into a DSN that opens the database
// read-only with query_only set on every connection. In-memory databases
// keep their mode, since a read-only memory database is always empty.
func ReadOnlyDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return withPragma(dsn, "query_only(1)")
	}

	path, rawQuery, _ := strings.Cut(dsn, "?")
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	q.Set("mode", "ro")
	q.Add("_pragma", "query_only(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return path + "?" + q.Encode()
}

func withPragma(dsn, pragma string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + url.QueryEscape(pragma)
}
