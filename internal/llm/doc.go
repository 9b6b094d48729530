// Package llm defines the completion client used for free-form questions that
// no deterministic handler covers. Provider adapters live in sub-packages.
package llm
