/*
JavaScript Obfuscator Tool (Entry Point)

This tool hides the string literals of JavaScript source files behind lookups
into shuffled character headers, then minifies the result. It works on single
files or whole directory trees, and can keep a target tree in sync while the
sources change.
*/
package main

import (
	"github.com/whit3rabbit/jsmixer/cmd/go-js-obfuscator/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
