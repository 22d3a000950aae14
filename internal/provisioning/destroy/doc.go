// Package destroy tears down every ephemeral resource of a run.
//
// Teardown works from two sources: the run's registry of created handles
// and a rediscovery by run-tag label. Steps are independent; a failing step
// is recorded and the remaining steps still run. Instances go first, then
// the SSH key, firewall and network, then the identity policy and role, and
// finally a label sweep for anything still tagged with the run.
package destroy
