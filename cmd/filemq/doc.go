// Package main hosts the filemq command line tool.
//
// Each command resolves a single queue, either from a filemq:// URI or a
// plain queue name looked up in the loaded configuration (or placed under
// --root), and runs one queue operation against it. Configuration is
// loaded once per invocation; commands that only scaffold files skip it.
package main
