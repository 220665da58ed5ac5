// Package policy defines the provenance policy applied to release artifacts.
//
// A policy is two immutable pattern sets:
//
//   - required: fragments every checked artifact must contain, such as the
//     public product identifier
//   - forbidden: fragments no checked artifact may contain, such as
//     version-control checkout paths, internal hostnames or revision tags
//
// Policies load from the policy block of a suite YAML file or from a
// standalone CUE file:
//
//	required:  ["clang-cgc"]
//	forbidden: ["svn/svn", "infrastructure", "(tags/"]
//
// Every pattern is matched byte-for-byte, so loading rejects patterns that
// could never match predictably (empty, non-NFC, NUL bytes, invalid UTF-8).
package policy
