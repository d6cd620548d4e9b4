// Package ident generates the human-readable delegation identifiers of the
// form descriptor-color-creature (e.g. "brisk-amber-heron"). Generation is
// stateless and intentionally collision-unaware: callers check each candidate
// against their registry and re-roll on collision, bounding attempts.
package ident

import (
	"math/rand/v2"
	"strings"
)

var descriptors = []string{
	"agile", "bold", "brave", "bright", "brisk", "calm", "clever", "crisp",
	"daring", "deft", "eager", "fleet", "gentle", "keen", "lively", "lucid",
	"merry", "nimble", "patient", "plucky", "proud", "quick", "quiet", "rapid",
	"sharp", "silent", "sleek", "spry", "steady", "stout", "swift", "tidy",
	"vivid", "wise", "witty", "zesty",
}

var colors = []string{
	"amber", "azure", "bronze", "cobalt", "copper", "coral", "crimson",
	"emerald", "golden", "indigo", "ivory", "jade", "maroon", "ochre",
	"olive", "onyx", "pearl", "ruby", "russet", "saffron", "scarlet",
	"silver", "teal", "violet",
}

var creatures = []string{
	"badger", "bison", "crane", "falcon", "ferret", "finch", "fox", "gecko",
	"heron", "hornet", "ibis", "jackal", "kestrel", "lemur", "lynx", "marmot",
	"marten", "newt", "ocelot", "osprey", "otter", "owl", "panther", "petrel",
	"puffin", "raven", "robin", "salmon", "shrike", "sparrow", "stoat",
	"swallow", "tapir", "vole", "weasel", "wren",
}

// Generate returns a random lower-case three-word identifier. It does not
// track previous results; uniqueness is the caller's concern.
func Generate() string {
	return strings.Join([]string{
		descriptors[rand.IntN(len(descriptors))],
		colors[rand.IntN(len(colors))],
		creatures[rand.IntN(len(creatures))],
	}, "-")
}

// Space returns the number of distinct identifiers Generate can produce,
// useful for reasoning about collision probability in callers' retry bounds.
func Space() int {
	return len(descriptors) * len(colors) * len(creatures)
}
