// Package names generates and sanitizes the resource names gantry hands to
// the container engine.
package names

import (
	"math/rand"
	"strings"
)

// DefaultNamespace prefixes every resource name created by gantry unless the
// caller overrides it.
const DefaultNamespace = "gantry"

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz"

// RandomSuffix returns a random lowercase string of length n.
func RandomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

// Sanitize replaces path separators with underscores. The engine rejects
// container names containing '/' or '\'.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}

// Container builds the final container name: namespace-name-suffix.
func Container(namespace, name, suffix string) string {
	return namespace + "-" + Sanitize(name) + "-" + suffix
}

// StaticContainer builds the stable name for a cross-run shared container.
// No random suffix: the name is the identity the runs rendezvous on.
func StaticContainer(namespace, name string) string {
	return namespace + "-" + Sanitize(name)
}

// Network builds the per-run network name.
func Network(namespace, runID string) string {
	return namespace + "-" + runID
}

// Volume suffixes a user-declared bare volume name with the run ID.
func Volume(name, runID string) string {
	return name + "-" + runID
}
