//go:build !scenedebug

package fault

const panicOnInvariant = false
