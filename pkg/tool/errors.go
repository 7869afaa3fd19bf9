package tool

import "fmt"

// DuplicateNameError is returned by [Registry.Register] when a descriptor with
// the same name has already been registered.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tool: %q is already registered", e.Name)
}

// MissingParameterError reports a required parameter that the caller did not
// supply and that has no default.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("tool: missing required parameter %q", e.Name)
}

// InvalidParameterError reports a supplied parameter that failed a type or
// constraint check.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("tool: invalid parameter %q: %s", e.Name, e.Reason)
}

// UnknownToolError is returned when a call names a tool that is not
// registered. Suggestion holds the closest registered name, if any is similar
// enough to be worth mentioning.
type UnknownToolError struct {
	Name       string
	Suggestion string
}

func (e *UnknownToolError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("tool: unknown tool %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("tool: unknown tool %q", e.Name)
}
