// Package cli provides the cobra command tree for tutorkit.
// Commands talk to the core exclusively through driving ports; services
// are injected by main via SetServices.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
	"github.com/custodia-labs/tutorkit/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Injected services. Nil checks in each command keep partial wiring
// (e.g. no embedding provider configured) from panicking.
var (
	libraryService   driving.LibraryService
	pipeline         driving.Pipeline
	retrievalService driving.RetrievalService
	readinessService driving.ReadinessService
	conceptStore     driven.ConceptStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tutorkit",
	Short: "Ingest educational sources and retrieve tutoring context",
	Long: `tutorkit ingests educational sources (markdown courses, video
transcripts, notebooks) into a concept graph with semantically chunked,
embedded content, then serves retrieval and study recommendations over it.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services bundles everything the command tree needs.
type Services struct {
	Library   driving.LibraryService
	Pipeline  driving.Pipeline
	Retrieval driving.RetrievalService
	Readiness driving.ReadinessService
	Concepts  driven.ConceptStore
}

// SetServices wires the injected services into the command tree.
func SetServices(s Services) {
	libraryService = s.Library
	pipeline = s.Pipeline
	retrievalService = s.Retrieval
	readinessService = s.Readiness
	conceptStore = s.Concepts
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
