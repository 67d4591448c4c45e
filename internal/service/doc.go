// Package service contains the application use cases behind the web front-end.
// It orchestrates domain objects and the store interfaces defined in
// internal/store and never depends on a concrete storage engine.
//
// Key components:
//
//   - ReportService answers the public data endpoints (organization report,
//     statistics, toplist) from stored ratings.
//   - AdminService turns admin actions on selected organizations into tasks
//     enqueued on the broker.
//   - The auth subpackage handles admin login sessions and CSRF tokens.
package service
