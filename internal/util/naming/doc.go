// Package naming provides consistent naming functions for run resources.
//
// Infrastructure names are derived from the run tag ({tag}, {tag}-key,
// {tag}-issuer). Certificate store names are derived from domains with a
// normalization that keeps distinct hostnames distinct.
package naming
