package gwsvc

import (
	"fmt"
	"sort"
)

// ServiceDescriptor is the human-facing identity of a resolved backend
// set. It is fixed per platform and carries no behavior.
type ServiceDescriptor struct {
	// Label names the backend set, e.g. "launchd"
	Label string
	// LoadedText is the display line for a registered service
	LoadedText string
	// NotLoadedText is the display line for an unregistered service
	NotLoadedText string
}

// InstallSpec describes the gateway invocation to register with a
// backend.
type InstallSpec struct {
	// ProgramArguments is the argv to launch. The first element is the
	// interpreter binary; backends that distinguish interpreter from
	// script (PM2) require at least two elements.
	ProgramArguments []string

	// WorkingDirectory is the directory the gateway starts in; empty
	// leaves it to the backend's default
	WorkingDirectory string

	// Environment holds extra variables set for the gateway process
	Environment map[string]string

	// Description is the human-readable unit description
	Description string
}

// validate checks the spec against a backend's minimum argv length.
func (s InstallSpec) validate(backend Backend, minArgs int) error {
	if len(s.ProgramArguments) < minArgs {
		return fmt.Errorf("gwsvc: %s install requires at least %d program arguments, got %d",
			backend, minArgs, len(s.ProgramArguments))
	}
	if s.ProgramArguments[0] == "" {
		return fmt.Errorf("gwsvc: %s install requires a non-empty interpreter", backend)
	}
	return nil
}

// environKeys returns the environment keys sorted, so serialized unit
// definitions come out deterministic.
func (s InstallSpec) environKeys() []string {
	if len(s.Environment) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Environment))
	for k := range s.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// environList flattens Environment into sorted KEY=VALUE form for
// passing along to a spawned tool.
func (s InstallSpec) environList() []string {
	keys := s.environKeys()
	if keys == nil {
		return nil
	}
	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+s.Environment[k])
	}
	return list
}

// CommandSnapshot reconstructs the invocation a backend currently has
// installed. Callers diff it against their own InstallSpec to detect
// drift between the installed unit and the binary's current invocation.
type CommandSnapshot struct {
	// ProgramArguments is the installed argv
	ProgramArguments []string
	// WorkingDirectory is the installed working directory, if recorded
	WorkingDirectory string
	// Environment holds the installed variables when the backend can
	// read them back
	Environment map[string]string
	// SourcePath is where the unit definition lives, for backends that
	// keep one on disk
	SourcePath string
}

// Matches reports whether the snapshot still matches spec. Argv and
// working directory always participate; the environment is compared only
// when the snapshot carries one, since not every backend can read it
// back.
func (c *CommandSnapshot) Matches(spec InstallSpec) bool {
	if c == nil {
		return false
	}
	if len(c.ProgramArguments) != len(spec.ProgramArguments) {
		return false
	}
	for i, arg := range c.ProgramArguments {
		if arg != spec.ProgramArguments[i] {
			return false
		}
	}
	if c.WorkingDirectory != spec.WorkingDirectory {
		return false
	}
	if c.Environment != nil {
		if len(c.Environment) != len(spec.Environment) {
			return false
		}
		for k, v := range spec.Environment {
			if c.Environment[k] != v {
				return false
			}
		}
	}
	return true
}
