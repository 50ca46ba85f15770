// Package preflight provides readiness checks for the directories, binaries
// and remote services tailor depends on.
//
// The daemon checks directories and binaries at startup and refuses to serve
// when a required one fails; remote service checks only produce warnings. The
// CLI "tailor status" command renders every result. Analysis and mirror
// checks only run when those features are configured.
package preflight
