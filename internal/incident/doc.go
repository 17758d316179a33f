// Package incident provides the business boundary for dbugger's incident
// pipeline. It defines the Record that flows through one run, the pure Build
// step that assembles it, the best-effort Enricher (single-flight AI analysis),
// and the Pipeline that sequences context -> enrichment -> dispatch.
//
// Runs are independent: each owns its Record, and nothing serializes two runs
// that overlap in time. The Enricher's in-flight flag is the only state shared
// across runs.
package incident
