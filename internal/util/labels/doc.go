// Package labels provides consistent labeling for ephemeral resources.
//
// All labels use the certzner.io domain prefix. The run tag label is the
// handle teardown uses to rediscover servers, networks, firewalls and SSH
// keys created by a run.
package labels
