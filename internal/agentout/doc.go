// Package agentout extracts structured results from free-form agent text.
//
// Agents are asked for JSON but answer conversationally, so extraction tries
// an ordered list of strategies: fenced code blocks tagged as data, the whole
// text as JSON, then a balanced-brace scan for embedded object literals. The
// first candidate carrying the expected discriminating key wins.
//
// An agent may also answer with a small pointer object naming a side-channel
// file that holds its real output; ResolvePointer reads that file, confined
// to the working directory, and validates the declared output type.
//
// Envelope schemas are closed: unrecognized top-level keys reject the whole
// envelope. Individual issues that fail validation are dropped and logged
// without failing the batch. JSON-syntax failures and schema failures are
// distinct error types, both carrying the offending raw text.
package agentout
