// Package harness runs provenance suites against a freshly built toolchain.
//
// A suite resets the build tree, probes each declared artifact and checks
// the probed text against a provenance policy: required patterns must
// appear, forbidden patterns must not.
//
// # Suite Format
//
// Suites are YAML files:
//
//	name: clang-cgc-release
//	description: "Release binaries must not leak build provenance"
//	dir: .                        # harness directory, relative to this file
//	build:
//	  clean: [make, clean]
//	  build: [make]
//	  timeout: 2h
//	  rebuild: once               # or per_case
//	probe_timeout: 60s
//	policy:
//	  required: [clang-cgc]
//	  forbidden: [svn/svn, infrastructure, "(tags/"]
//	cases:
//	  - name: nosvn
//	    artifact:
//	      kind: file
//	      locator: [./tester]
//	    checks: [required, forbidden]
//	  - name: clangver
//	    artifact:
//	      kind: command-output
//	      locator: [../Release+Asserts/bin/clang, --version]
//	    checks: [forbidden]
//
// policy_file may name a YAML or CUE policy instead of an inline policy
// block. A case without checks is held to both sets.
//
// # Case Lifecycle
//
// Each case moves NotBuilt → Building → Built → Probing → Asserted. A build
// failure aborts the whole run; pending cases are left where they are and
// not evaluated. A probe error fails only its own case.
//
// Every transition is recorded in the report trace with a logical sequence
// number, so two runs over the same tree produce identical reports.
package harness
