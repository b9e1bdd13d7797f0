// Package dispatch fans a compressed diff out to independent reviewer
// agents and aggregates their validated issues.
//
// Each agent runs as its own session with bounded concurrency. Any failure
// inside one dispatch (session creation, stream error, timeout, unusable
// output) degrades to zero issues from that agent plus a warning; sibling
// agents are unaffected. The join waits for all agents to settle rather than
// failing fast.
package dispatch
