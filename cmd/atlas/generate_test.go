package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/plugin/ai/atlas"
)

func writeItems(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlItems), 0o600))
	return path
}

func TestGenerateCmd(t *testing.T) {
	input := writeItems(t)

	run := func(args ...string) *atlas.MapState {
		cmd := newGenerateCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())

		state := &atlas.MapState{}
		require.NoError(t, json.Unmarshal(out.Bytes(), state))
		return state
	}

	first := run("--input", input, "--seed", "42", "--map-version", "5")
	second := run("--input", input, "--seed", "42", "--map-version", "5")

	assert.Equal(t, int64(5), first.Version)
	require.Len(t, first.Cities, 2)
	assert.Equal(t, first.Cities, second.Cities)

	gardening, ok := first.CityByName("gardening")
	require.True(t, ok)
	assert.Equal(t, 2, gardening.Population)
	assert.Equal(t, 2, first.Stats.EmbeddedTopicCount)
}

func TestGenerateCmd_OutputFile(t *testing.T) {
	input := writeItems(t)
	output := filepath.Join(t.TempDir(), "map.json")

	cmd := newGenerateCmd()
	cmd.SetArgs([]string{"-i", input, "-o", output, "--seed", "1"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var state atlas.MapState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Len(t, state.Cities, 2)
	assert.Empty(t, state.Doors)
}

func TestGenerateCmd_RequiresInput(t *testing.T) {
	cmd := newGenerateCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	assert.Error(t, cmd.Execute())
}
