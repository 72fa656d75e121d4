//go:build scenedebug

package fault

const panicOnInvariant = true
