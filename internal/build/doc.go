// Package build resets and rebuilds a toolchain tree before it is probed.
//
// A reset runs two commands in the harness directory: a clean step followed
// by a build step (by default "make clean" and "make"). The directory is
// passed explicitly to each command; the process working directory is never
// changed, so an Orchestrator can be used from tests in isolation.
//
// Builds mutate the shared tree, so resets of the same directory are
// serialized across all Orchestrators in the process.
package build
