//go:build !cgo

package sqldriver

const MattnAvailable = false
