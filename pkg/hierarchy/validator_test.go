package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	return &Config{
		HierarchyID:   "h",
		GlobalPrompt:  "p",
		ExecutionMode: ExecutionModeParallel,
		Teams: []TeamConfig{
			{
				Name:             "t",
				SupervisorPrompt: "p",
				Workers: []WorkerConfig{
					{Name: "w", SystemPrompt: "p"},
				},
			},
		},
	}
}

func TestValidateAllAcceptsMinimalValidConfig(t *testing.T) {
	require.NoError(t, NewValidator(baseConfig()).ValidateAll())
}

func TestValidateAllRejectsMissingHierarchyID(t *testing.T) {
	cfg := baseConfig()
	cfg.HierarchyID = ""
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestValidateAllRejectsInvalidExecutionMode(t *testing.T) {
	cfg := baseConfig()
	cfg.ExecutionMode = "eventually"
	err := NewValidator(cfg).ValidateAll()
	require.ErrorIs(t, err, ErrInvalidExecutionMode)
}

func TestValidateAllRejectsNoTeams(t *testing.T) {
	cfg := baseConfig()
	cfg.Teams = nil
	err := NewValidator(cfg).ValidateAll()
	require.ErrorIs(t, err, ErrNoTeams)
}

func TestValidateAllRejectsDuplicateTeamNames(t *testing.T) {
	cfg := baseConfig()
	cfg.Teams = append(cfg.Teams, cfg.Teams[0])
	err := NewValidator(cfg).ValidateAll()
	require.ErrorIs(t, err, ErrDuplicateTeamName)
}

func TestValidateAllRejectsDuplicateWorkerNamesWithinTeam(t *testing.T) {
	cfg := baseConfig()
	cfg.Teams[0].Workers = append(cfg.Teams[0].Workers, cfg.Teams[0].Workers[0])
	err := NewValidator(cfg).ValidateAll()
	require.ErrorIs(t, err, ErrDuplicateWorkerName)
}

func TestValidateAllRejectsTeamWithNoWorkers(t *testing.T) {
	cfg := baseConfig()
	cfg.Teams[0].Workers = nil
	err := NewValidator(cfg).ValidateAll()
	require.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestValidationErrorMessageIncludesFieldContext(t *testing.T) {
	err := NewValidationError("team", "diagnostics", "supervisor_prompt", ErrMissingRequiredField)
	require.Contains(t, err.Error(), "diagnostics")
	require.Contains(t, err.Error(), "supervisor_prompt")
}
