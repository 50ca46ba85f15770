// Package deps checks for the external binaries tailor runs.
package deps
