// Package driving provides interfaces for application entry points
// (primary/inbound ports): the pipeline, retrieval, readiness and
// library management surfaces the CLI drives.
package driving
