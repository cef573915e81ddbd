package hierarchy

import "os"

// ExpandEnv expands ${VAR} / $VAR references in YAML source text before
// parsing, so hierarchy definitions can reference credentials or
// environment-specific values without hardcoding them.
//
// Missing variables expand to the empty string; validation is responsible
// for catching required fields left empty by a missing variable.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
