package pipeline

import "strings"

// specificityMarkers are lowercase stems whose presence suggests concrete
// technical work. Matching is by substring.
var specificityMarkers = []string{
	"implement", "function", "class", "method", "variable", "loop",
	"condition", "import", "export", "algorithm", "structure", "pattern",
	"module", "library", "framework", "interface", "abstract", "inherit",
	"polymorphism", "encapsulat", "recursion", "callback", "promise",
	"async", "await", "thread", "concurren", "exception", "syntax",
	"api", "endpoint", "route", "server", "client", "database", "query",
	"migration", "schema", "model", "view", "middleware", "serializ",
	"authenticat", "authoriz", "token", "session", "cache", "orm",
	"crud", "rest", "graphql", "websocket", "microservice",
	"component", "hook", "state", "props", "render", "dom", "css",
	"html", "layout", "responsive", "flexbox", "grid", "animation",
	"event", "listener", "selector", "stylesheet", "bundl", "webpack",
	"vite", "redux", "context", "router", "jsx", "tsx", "virtual dom",
	"tensor", "epoch", "gradient", "train", "dataset", "feature",
	"regression", "classificat", "cluster", "neural", "layer", "weight",
	"bias", "loss", "accurac", "precision", "recall", "pandas",
	"numpy", "matplotlib", "sklearn", "pytorch", "tensorflow",
	"deploy", "config", "docker", "container", "pipeline", "ci/cd",
	"kubernetes", "nginx", "ssl", "dns", "load balanc", "monitor",
	"logging", "terraform", "ansible", "cloud", "aws", "azure",
	"test", "assert", "mock", "fixture", "coverage", "unit test",
	"integrat", "e2e", "debug", "error", "bug", "stack trace",
	"breakpoint", "lint", "refactor",
	"android", "ios", "swift", "kotlin", "flutter", "react native",
	"navigation", "gesture", "notification",
	"encrypt", "hash", "cors", "csrf", "xss", "injection", "firewall",
	"vulnerab", "oauth", "jwt", "certificate",
	"sql", "nosql", "index", "join", "normali", "transaction",
	"foreign key", "primary key", "constraint", "trigger", "stored proc",
	"redis", "mongo", "postgres", "mysql",
	"git", "branch", "merge", "commit", "pull request", "repository",
}

// countMarkers returns how many specificity markers occur in text.
func countMarkers(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, m := range specificityMarkers {
		if strings.Contains(lower, m) {
			n++
		}
	}
	return n
}
