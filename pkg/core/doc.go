// Package core defines the shared language of the LeapMetric system.
//
// This package contains:
//   - Domain entities (SemanticMetric, SemanticMetricVariant, DerivedEntity)
//   - The Fetcher interface used to look up definitions by id
//   - Typed compilation errors
//   - Database schema types consumed by join inference
//
// The Golden Rule: pkg/core imports ONLY stdlib and copystructure.
// All other packages depend on core, not the reverse.
package core
