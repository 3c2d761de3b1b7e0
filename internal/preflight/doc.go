// Package preflight provides readiness checks for the filesystem paths,
// ports and external programs docgate depends on.
//
// These checks run in two contexts:
//   - "docgate doctor" runs RunAll before the server is started and reports
//     every check in a table.
//   - The status endpoint and "docgate status" use CheckSystemDeps to show
//     whether the office binary is installed.
package preflight
