package hierarchy

import "fmt"

// Validator validates a Config comprehensively, stopping at the first error
// (fail-fast), matching the ordered-check style used throughout the
// surrounding configuration stack.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive structural validation. A HierarchyConfig
// that fails validation must never reach HierarchyBuilder.Build: configuration
// errors are surfaced synchronously at RunManager.Start and no Run is
// created.
func (v *Validator) ValidateAll() error {
	if err := v.validateGlobal(); err != nil {
		return err
	}
	if err := v.validateTeams(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateGlobal() error {
	c := v.cfg
	if c.HierarchyID == "" {
		return NewValidationError("hierarchy", "", "hierarchy_id", ErrMissingRequiredField)
	}
	if c.GlobalPrompt == "" {
		return NewValidationError("hierarchy", c.HierarchyID, "global_prompt", ErrMissingRequiredField)
	}
	switch c.ExecutionMode {
	case ExecutionModeSequential, ExecutionModeParallel:
	default:
		return NewValidationError("hierarchy", c.HierarchyID, "execution_mode",
			fmt.Errorf("%w: %q", ErrInvalidExecutionMode, c.ExecutionMode))
	}
	if len(c.Teams) == 0 {
		return NewValidationError("hierarchy", c.HierarchyID, "teams", ErrNoTeams)
	}
	return nil
}

func (v *Validator) validateTeams() error {
	seenTeams := make(map[string]struct{}, len(v.cfg.Teams))
	for _, team := range v.cfg.Teams {
		if team.Name == "" {
			return NewValidationError("team", team.ID, "name", ErrMissingRequiredField)
		}
		if _, dup := seenTeams[team.Name]; dup {
			return NewValidationError("team", team.Name, "name", ErrDuplicateTeamName)
		}
		seenTeams[team.Name] = struct{}{}

		if team.SupervisorPrompt == "" {
			return NewValidationError("team", team.Name, "supervisor_prompt", ErrMissingRequiredField)
		}
		if len(team.Workers) == 0 {
			return NewValidationError("team", team.Name, "workers", ErrMissingRequiredField)
		}

		seenWorkers := make(map[string]struct{}, len(team.Workers))
		for _, w := range team.Workers {
			if w.Name == "" {
				return NewValidationError("worker", w.ID, "name", ErrMissingRequiredField)
			}
			if _, dup := seenWorkers[w.Name]; dup {
				return NewValidationError("worker", w.Name, "name",
					fmt.Errorf("%w: team %q", ErrDuplicateWorkerName, team.Name))
			}
			seenWorkers[w.Name] = struct{}{}

			if w.SystemPrompt == "" {
				return NewValidationError("worker", w.Name, "system_prompt", ErrMissingRequiredField)
			}
		}
	}
	return nil
}
