//go:build cgo

// Package sqldriver registers optional database/sql drivers. The cgo
// sqlite3 driver is only linked into cgo builds; pure-Go builds fall back
// to modernc.org/sqlite.
package sqldriver

import _ "github.com/mattn/go-sqlite3"

// MattnAvailable reports whether the "sqlite3" driver is linked in.
const MattnAvailable = true
