package internalcheck

import (
	"testing"

	"golang.org/x/tools/go/packages"
)

const pattern = "github.com/coinbase/cb-mpc-runtime-go/pkg/mpcrt/..."

func load(t *testing.T, mode packages.LoadMode) []*packages.Package {
	t.Helper()
	pkgs, err := packages.Load(&packages.Config{Mode: mode}, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("packages under %s have errors", pattern)
	}
	return pkgs
}
