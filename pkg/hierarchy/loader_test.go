package hierarchy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
hierarchy_id: incident-response
global_prompt: "you triage incoming tasks"
global_agent_id: global-1
execution_mode: parallel
enable_context_sharing: true
teams:
  - id: team-diag
    name: diagnostics
    agent_id: team-diag-1
    supervisor_prompt: "you supervise diagnostics"
    prevent_duplicate: true
    workers:
      - id: worker-logs
        name: log-reader
        agent_id: worker-logs-1
        role: "reads logs"
        system_prompt: "you read logs for clues"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "incident-response.yaml", validYAML)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "incident-response", cfg.HierarchyID)
	require.Equal(t, ExecutionModeParallel, cfg.ExecutionMode)
	require.Equal(t, 20, cfg.MaxIterations)
	require.Len(t, cfg.Teams, 1)
	require.Equal(t, 20, cfg.Teams[0].MaxIterations)
}

func TestLoadFileDefaultsExecutionModeToSequential(t *testing.T) {
	dir := t.TempDir()
	noMode := `
hierarchy_id: h
global_prompt: "p"
teams:
  - name: t
    supervisor_prompt: "p"
    workers:
      - name: w
        system_prompt: "p"
`
	path := writeFile(t, dir, "h.yaml", noMode)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, ExecutionModeSequential, cfg.ExecutionMode)
}

func TestLoadFileRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.yaml", "not: [valid yaml")

	_, err := LoadFile(path)
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadFileRejectsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "incomplete.yaml", `
hierarchy_id: h
execution_mode: parallel
teams: []
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestLoadDirAggregatesAllFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "incident-response.yaml", validYAML)
	writeFile(t, dir, "ignored.txt", "not yaml, must be skipped")

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	cfg, err := reg.Get("incident-response")
	require.NoError(t, err)
	require.Equal(t, "diagnostics", cfg.Teams[0].Name)
}

func TestLoadDirFailsFastOnOneBadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", validYAML)
	writeFile(t, dir, "bad.yaml", "teams: [")

	_, err := LoadDir(dir)
	require.Error(t, err)
}

func TestExpandEnvSubstitutesVariables(t *testing.T) {
	t.Setenv("HIVE_TEST_PROMPT", "expanded prompt")
	out := ExpandEnv([]byte("global_prompt: \"${HIVE_TEST_PROMPT}\""))
	require.Contains(t, string(out), "expanded prompt")
}
