// Package config loads the daemon-level knobs sysdbd needs to start: the
// list of Unix socket addresses to listen on, the worker pool size, and
// the collector scheduler's default interval. It intentionally does not
// attempt the original implementation's plugin-directive configuration
// grammar (spec.md §1 rules dynamic plugin loading and the configuration
// file grammar out of scope); this is a thin YAML file, not a full
// reimplementation of sysdbd.conf.
package config
