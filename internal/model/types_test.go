package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyStringFormat(t *testing.T) {
	k := Key{Name: "@babel/core", Version: "7.0.0"}
	require.Equal(t, "@babel/core@7.0.0", k.String())
}

func TestPackageKeyIncludesIntegrity(t *testing.T) {
	a := FlatPackage{Name: "left-pad", Version: "1.3.0", Integrity: "sha512-aaa"}
	b := FlatPackage{Name: "left-pad", Version: "1.3.0", Integrity: "sha512-bbb"}
	require.NotEqual(t, PackageKey(a), PackageKey(b))
}

func TestNewInstallReportInitializesMaps(t *testing.T) {
	r := NewInstallReport()
	require.NotNil(t, r.Failed)
	require.NotNil(t, r.Durations)
	require.Empty(t, r.Installed)
}
