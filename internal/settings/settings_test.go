package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), logging.Discard())

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWeights(), s.Weights())
	assert.Equal(t, "top-right", s.Settings().BadgePosition)
}

func TestSaveWeights_PersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := Open(path, logging.Discard())
	require.NoError(t, err)

	w := domain.UserWeights{ProductionAndBrand: 1, CircularityAndEndOfLife: 3, MaterialComposition: 5}
	require.NoError(t, s.SaveWeights(w))
	assert.Equal(t, w, s.Weights())

	reopened, err := Open(path, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, w, reopened.Weights())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveWeights_InvalidIsNeverApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path, logging.Discard())
	require.NoError(t, err)

	called := false
	s.OnChange(func(domain.UserWeights) { called = true })

	err = s.SaveWeights(domain.UserWeights{ProductionAndBrand: 2, CircularityAndEndOfLife: 2, MaterialComposition: 9})

	assert.ErrorIs(t, err, domain.ErrInvalidWeights)
	assert.Equal(t, domain.DefaultWeights(), s.Weights())
	assert.False(t, called)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOnChange(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), logging.Discard())
	require.NoError(t, err)

	var got []domain.UserWeights
	s.OnChange(func(w domain.UserWeights) { got = append(got, w) })

	w := domain.UserWeights{ProductionAndBrand: 4, CircularityAndEndOfLife: 4, MaterialComposition: 4}
	require.NoError(t, s.SaveWeights(w))

	assert.Equal(t, []domain.UserWeights{w}, got)
}

func TestWatch_ReloadsWeightsSavedElsewhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	watching, err := Open(path, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watching.Watch(ctx))

	changes := make(chan domain.UserWeights, 4)
	watching.OnChange(func(w domain.UserWeights) { changes <- w })

	other, err := Open(path, logging.Discard())
	require.NoError(t, err)
	w := domain.UserWeights{ProductionAndBrand: 1, CircularityAndEndOfLife: 2, MaterialComposition: 3}
	require.NoError(t, other.SaveWeights(w))

	select {
	case got := <-changes:
		assert.Equal(t, w, got)
	case <-time.After(2 * time.Second):
		t.Fatal("listener not called after the file was replaced")
	}
	assert.Equal(t, w, watching.Weights())
}

func TestWatch_IgnoresInvalidWeightsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	watching, err := Open(path, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watching.Watch(ctx))

	changes := make(chan domain.UserWeights, 4)
	watching.OnChange(func(w domain.UserWeights) { changes <- w })

	bad := "weights:\n  production_and_brand: 9\n  circularity_and_end_of_life: 5\n  material_composition: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	select {
	case got := <-changes:
		t.Fatalf("listener called with %v", got)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, domain.DefaultWeights(), watching.Weights())
}

func TestOpen_InvalidStoredWeightsFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := "weights:\n  production_and_brand: 0\n  circularity_and_end_of_life: 3\n  material_composition: 3\ndark_mode: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Open(path, logging.Discard())

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultWeights(), s.Weights())
	assert.True(t, s.Settings().DarkMode)
}

func TestOpen_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights: [unclosed"), 0o644))

	_, err := Open(path, logging.Discard())
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := ExpandPath("~/.ecoshop/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ecoshop/settings.yaml"), p)

	p, err = ExpandPath("/tmp/x.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.yaml", p)

	_, err = ExpandPath("")
	assert.Error(t, err)
}
