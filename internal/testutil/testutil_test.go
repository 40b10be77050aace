package testutil

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wesm/gcg/internal/testutil/tbmock"
)

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	path := WriteFile(t, dir, "a/b/config.toml", []byte("[book]\n"))
	MustExist(t, path)
	if got := string(ReadFile(t, path)); got != "[book]\n" {
		t.Errorf("ReadFile = %q", got)
	}
	if want := filepath.Join(dir, "a", "b", "config.toml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestMustNotExist(t *testing.T) {
	MustNotExist(t, filepath.Join(t.TempDir(), "missing"))
}

func TestMakeSet(t *testing.T) {
	s := MakeSet(1, 3)
	if !s[1] || s[2] || !s[3] {
		t.Errorf("MakeSet = %v", s)
	}
}

func TestAssertDecimalIgnoresScale(t *testing.T) {
	AssertDecimal(t, decimal.RequireFromString("50.00"), "50")
}

func TestMustNoErrStopsOnError(t *testing.T) {
	mtb := tbmock.NewMockTB(t)
	tbmock.ExpectFatal(mtb, func() {
		MustNoErr(mtb, errors.New("book locked"), "open")
		t.Error("MustNoErr returned after an error")
	})
	if !mtb.Failed() || mtb.FatalMsg != "open: book locked" {
		t.Errorf("Failed = %v, FatalMsg = %q", mtb.Failed(), mtb.FatalMsg)
	}

	mtb = tbmock.NewMockTB(t)
	MustNoErr(mtb, nil, "open")
	if mtb.Failed() {
		t.Error("MustNoErr(nil) failed the test")
	}
}

func TestAssertDecimalReportsMismatch(t *testing.T) {
	mtb := tbmock.NewMockTB(t)
	AssertDecimal(mtb, decimal.RequireFromString("49.99"), "50")
	if len(mtb.Errors) != 1 || mtb.Failed() {
		t.Errorf("Errors = %q, Failed = %v", mtb.Errors, mtb.Failed())
	}

	mtb = tbmock.NewMockTB(t)
	tbmock.ExpectFatal(mtb, func() { AssertDecimal(mtb, decimal.Zero, "fifty") })
	if !mtb.Failed() {
		t.Error("malformed expected value should stop the test")
	}
}

func TestAssertContainsAllReportsEachMissing(t *testing.T) {
	mtb := tbmock.NewMockTB(t)
	AssertContainsAll(mtb, "2024-03-01 Office Supplies 50.00", []string{"Office", "EUR", "USD"})
	if len(mtb.Errors) != 2 {
		t.Errorf("Errors = %q, want two", mtb.Errors)
	}
}
