// Package temporal provides Temporal workflow client integration for the
// citation enrichment service.
//
// This package handles workflow client initialization, workflow/activity
// registration, and worker lifecycle management.
//
// # Overview
//
// The temporal package provides:
//
//   - Client: Temporal client wrapper for starting/managing workflows
//   - Worker: Worker process for executing workflows and activities
//   - Workflow definition for the citation enrichment pipeline
//   - Activity implementations for the enrichment stages
//
// # Client Setup
//
// Create a Temporal client:
//
//	cfg := temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "citation-enrichment",
//	    TaskQueue: "citation-enrichment-tasks",
//	}
//
//	client, err := temporal.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Starting Workflows
//
// Start an enrichment workflow:
//
//	workflowID, runID, err := client.StartEnrichmentWorkflow(ctx, temporal.EnrichmentWorkflowInput{
//	    CitationID:   citationID,
//	    SubmissionID: submissionID,
//	    Reason:       domain.ReasonInitial,
//	})
//
// # Worker Setup
//
// Create and start a worker:
//
//	manager, err := temporal.NewWorkerManager(client, temporal.DefaultWorkerConfig(taskQueue))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manager.RegisterWorkflow(workflows.CitationEnrichmentWorkflow)
//	manager.RegisterActivity(enrichmentActivities)
//
//	if err := manager.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Activity Types
//
// Activities are grouped by responsibility:
//
//   - Extraction activities: Identifier parsing from citation text
//   - Resolution activities: Crossref/OpenAlex/ORCID lookups plus merge
//   - Lifecycle activities: Reset for reprocess, completion marker, events
//
// # Error Handling
//
// Workflows use standard Temporal error handling:
//
//	if temporal.IsWorkflowNotFound(err) {
//	    // Workflow doesn't exist or already completed
//	}
//
//	if temporal.IsWorkflowAlreadyStarted(err) {
//	    // Workflow with same ID is already running
//	}
//
// # Thread Safety
//
// The Temporal client is safe for concurrent use. Workers manage their
// own goroutines for activity execution.
package temporal
