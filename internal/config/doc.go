// Package config loads, normalizes, and validates FileMQ configuration.
//
// A configuration file names one or more queue configurations, each
// resolving to a root directory under which queues are created, plus
// logging settings shared by the CLI. Paths are tilde-expanded and made
// absolute during loading.
//
// Registry holds the named queue configurations at run time and is what the
// URI factory in pkg/filemq resolves "filemq://<name>/<queue>" against.
package config
