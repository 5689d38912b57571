// Package core provides the reconciliation pipeline behind the wound-care
// dashboard.
//
// The package holds all domain logic independent of any UI or transport
// layer. Web handlers, tests, or a batch job can call it without change.
//
// # Pipeline
//
// A run takes three decoded tables (census, roster, schedule) and a column
// [Selection] and returns one finalized [Table]:
//
//  1. [NormalizeHeaders] strips non-breaking spaces and whitespace from names
//  2. [ResolveIdentifier] renames the first MRN-like column to [IdentifierColumn]
//  3. [ExtractWoundFlags] collects wound-care identifiers from census and roster
//  4. [FilterSchedule] keeps schedule rows for those identifiers
//  5. [MergeTables] left-joins census then roster attributes
//  6. [Finalize] sorts by MRN and Target Date and projects the selection
//
// [Run] chains the stages; [Service.Run] adds the concurrency limit used by
// the HTTP server.
//
// # Values
//
// Cells are [Value]s built from pgtype nullable types. An empty cell has no
// valid member, which keeps "missing" distinct from an empty string or zero.
//
// # Error Handling
//
// Column detection failures are terminal and wrap [ErrMissingIdentifierColumn]
// or [ErrMissingRequiredColumn] in a [*ColumnError]. Empty results are not
// errors. [MapError] turns any error into a user-facing message with a support
// code.
package core
