// Package dedupe provides a time-windowed set of keys used to stop the same
// approval request from being filed twice in quick succession.
package dedupe
