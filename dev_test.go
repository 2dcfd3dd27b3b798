package swcache_test

// Keeps development tooling module in go.mod, the package has no init side effects.
import _ "github.com/bool64/dev" // Include development helpers to project.
