// Package types holds shared types used across the evaluation harness:
// the structured error taxonomy and its error-code constants.
package types
