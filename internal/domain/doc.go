// Package domain defines the core types of the event ingestion pipeline.
//
// Types in this package are plain value objects with no database
// dependencies and no HTTP concerns. They are the shared language between
// the ingestion services, the repositories and the ops API.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Small pure methods on the types are allowed (merge, equality)
//   - Constants and enums belong here
package domain
