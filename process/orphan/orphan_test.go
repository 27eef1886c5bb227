package orphan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, base, key string) {
	t.Helper()
	p := filepath.Join(base, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
}

func TestScan(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "7/1-a.pdf")
	writeFile(t, base, "7/1-a.preview.jpg")
	writeFile(t, base, "7/2-stale.pdf")
	writeFile(t, base, "9/3-gone.png")

	referenced := map[string]bool{
		"7/1-a.pdf":         true,
		"7/1-a.preview.jpg": true,
	}
	orphans, err := Scan(base, referenced)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"7/2-stale.pdf", "9/3-gone.png"}, orphans)
}

func TestScanEmpty(t *testing.T) {
	orphans, err := Scan(t.TempDir(), nil)
	require.NoError(t, err)
	require.Empty(t, orphans)
}
