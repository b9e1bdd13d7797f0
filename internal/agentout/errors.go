package agentout

import "fmt"

// SyntaxError reports that no candidate in the text parsed as JSON at all.
type SyntaxError struct {
	Raw string
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("no valid JSON found in agent output: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// SchemaError reports that JSON parsed but did not match the expected shape.
type SchemaError struct {
	Raw    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("agent output failed schema validation: %s", e.Reason)
}
