package test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	snapshotDir        = "__snapshots__"
	snapshotUpdateEnv  = "TEST_UPDATE_GOLDEN"
	snapshotFilePerms  = 0o600
	snapshotDirPerms   = 0o755
	snapshotDiffOffset = 3
)

// Snapshoter is the default snapshot configuration used in tests:
//
//	test.Snapshoter.Label("Address").Save(t, addr)
//
//nolint:gochecknoglobals
var Snapshoter = SnapshotConfig{
	location: snapshotDir,
	update:   os.Getenv(snapshotUpdateEnv) == "true",
}

// SnapshotConfig controls where snapshots are stored and how they are named.
type SnapshotConfig struct {
	location string
	label    string
	update   bool
}

// Label returns a copy that suffixes the snapshot file name, so a test can save several snapshots.
func (c SnapshotConfig) Label(label string) SnapshotConfig {
	c.label = label
	return c
}

// Location returns a copy that stores snapshots in dir.
func (c SnapshotConfig) Location(dir string) SnapshotConfig {
	c.location = dir
	return c
}

// Update returns a copy that always rewrites the stored snapshot.
func (c SnapshotConfig) Update(update bool) SnapshotConfig {
	c.update = update
	return c
}

// Save dumps data and compares it with the stored snapshot of the current test.
// A missing snapshot is written and the test passes.
func (c SnapshotConfig) Save(t *testing.T, data ...interface{}) {
	t.Helper()

	dump := spewConfig().Sdump(data...)
	file := c.path(t)

	//nolint:gosec // path is derived from the test name
	stored, err := os.ReadFile(file)
	if os.IsNotExist(err) || c.update {
		if err := os.MkdirAll(filepath.Dir(file), snapshotDirPerms); err != nil {
			t.Fatalf("failed to create snapshot dir: %v", err)
		}
		if err := os.WriteFile(file, []byte(dump), snapshotFilePerms); err != nil {
			t.Fatalf("failed to write snapshot: %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}

	if string(stored) == dump {
		return
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(stored)),
		B:        difflib.SplitLines(dump),
		FromFile: "Snapshot",
		ToFile:   "Current",
		Context:  snapshotDiffOffset,
	})
	t.Errorf("snapshot %s does not match:\n%s", file, diff)
}

func (c SnapshotConfig) path(t *testing.T) string {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	if c.label != "" {
		name += "_" + c.label
	}

	return filepath.Join(c.location, name+".golden")
}

func spewConfig() *spew.ConfigState {
	return &spew.ConfigState{
		Indent:                  "  ",
		SortKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SpewKeys:                true,
	}
}
