package ime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tonegrid/internal/composer"
	"tonegrid/internal/config"
	"tonegrid/internal/logging"
)

const testDictionary = `
# test dictionary
ㄇㄚˇ 馬 -3.0
ㄇㄚˇ 瑪 -4.0
ㄌㄨˋ 路 -3.5
ㄇㄚˇ-ㄌㄨˋ 馬路 -2.0
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	dictPath := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(dictPath, []byte(testDictionary), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Model.BasePath = dictPath
	cfg.Model.UserDataDir = filepath.Join(dir, "user")
	cfg.Model.WatchUserFiles = false
	cfg.Learning.StorePath = filepath.Join(dir, "overrides.db")
	return cfg
}

func startedEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	log, err := logging.New(&logging.Config{Level: logging.LevelError, Output: "stderr"})
	require.NoError(t, err)

	engine, err := NewEngine(cfg, log)
	require.NoError(t, err)
	require.NoError(t, engine.Start())
	t.Cleanup(func() { engine.Close() })
	return engine
}

func typeKeys(e *Engine, keys string) Output {
	var out Output
	for _, r := range keys {
		out = e.ProcessKey(composer.PrintableKey(r))
	}
	return out
}

func TestComposeAndCommit(t *testing.T) {
	e := startedEngine(t, testConfig(t))

	out := typeKeys(e, "a83xj4")
	require.True(t, out.Consumed)
	require.Equal(t, "馬路", out.Preedit)
	require.Equal(t, len("馬路"), out.CursorIndex)
	require.True(t, e.Composing())

	out = e.ProcessKey(composer.NamedKey(composer.KeyReturn))
	require.True(t, out.Consumed)
	require.Equal(t, "馬路", out.Committed)
	require.Empty(t, out.Preedit)
	require.False(t, e.Composing())
}

func TestCandidatePanel(t *testing.T) {
	e := startedEngine(t, testConfig(t))

	typeKeys(e, "a83")
	out := e.ProcessKey(composer.NamedKey(composer.KeySpace))
	require.True(t, out.PanelOpen)
	require.Equal(t, []string{"馬", "瑪"}, out.Candidates)

	out = e.SelectCandidate("瑪")
	require.False(t, out.PanelOpen)
	require.Equal(t, "瑪", out.Preedit)
}

func TestCancelCandidates(t *testing.T) {
	e := startedEngine(t, testConfig(t))

	typeKeys(e, "a83")
	out := e.ProcessKey(composer.NamedKey(composer.KeySpace))
	require.True(t, out.PanelOpen)

	out = e.CancelCandidates()
	require.False(t, out.PanelOpen)
	require.Equal(t, "馬", out.Preedit)
	require.True(t, e.Composing())
}

func TestLearnedSelectionSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)

	e := startedEngine(t, cfg)
	typeKeys(e, "a83")
	e.ProcessKey(composer.NamedKey(composer.KeySpace))
	e.SelectCandidate("瑪")
	e.ProcessKey(composer.NamedKey(composer.KeyReturn))
	require.NoError(t, e.Close())

	e2 := startedEngine(t, cfg)
	out := typeKeys(e2, "a83")
	require.Equal(t, "瑪", out.Preedit)
}

func TestPassthroughWhenEmpty(t *testing.T) {
	e := startedEngine(t, testConfig(t))

	out := e.ProcessKey(composer.NamedKey(composer.KeyLeft))
	require.False(t, out.Consumed)

	out = e.ProcessKey(composer.NamedKey(composer.KeyReturn))
	require.False(t, out.Consumed)
}

func TestResetDropsComposition(t *testing.T) {
	e := startedEngine(t, testConfig(t))

	typeKeys(e, "a83")
	require.True(t, e.Composing())

	e.Reset()
	require.False(t, e.Composing())

	out := e.ProcessKey(composer.NamedKey(composer.KeyLeft))
	require.False(t, out.Consumed)
}
