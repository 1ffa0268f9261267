// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the understanding and embedding services,
// the persistent stores, and the artifact/progress sinks the pipeline
// depends on.
package driven
