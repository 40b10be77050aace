// Package testutil provides test helpers shared by gcg packages.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertStrings, AssertDecimal, etc.)
//   - fs_helpers.go: filesystem operations (WriteFile, ReadFile, MustExist)
//
// GnuCash fixture books are built by the ledgertest subpackage.
package testutil
