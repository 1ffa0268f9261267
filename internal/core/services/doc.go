// Package services contains the core application logic: the pipeline
// orchestrator and its stages (chunking, concept extraction, enrichment,
// mapping, embedding), plus the retrieval and readiness engines served
// at tutoring time.
package services
