package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Declarations (T001-T099)

	"T001": {
		Category:   CategoryDeclaration,
		Message:    "Invalid route path",
		Detail:     "Route paths must start with '/' and contain only letters, digits, '/', '_', '?' and '%'.",
		Suggestion: "Use a path such as /orders or /orders/detail",
	},
	"T002": {
		Category:   CategoryDeclaration,
		Message:    "Missing route description",
		Detail:     "Every route needs a description; it is written to the route manifest.",
		Suggestion: `Add description="..." to the //telepath:route directive`,
	},
	"T003": {
		Category: CategoryDeclaration,
		Message:  "Missing handler identity",
		Detail:   "A declaration needs either a handler reference or a function to derive one from.",
	},
	"T004": {
		Category:   CategoryDeclaration,
		Message:    "Missing sentinel handler",
		Detail:     "A route table needs both a home handler (no path) and a fallback handler (no match).",
		Suggestion: "Mark one function with //telepath:home and one with //telepath:fallback",
	},
	"T005": {
		Category: CategoryDeclaration,
		Message:  "Route table already built",
		Detail:   "The builder was frozen by Build and no longer accepts declarations.",
	},
	"T006": {
		Category: CategoryDeclaration,
		Message:  "Duplicate sentinel handler",
		Detail:   "Only one home handler and one fallback handler may be declared.",
	},

	// Parameters (T100-T199)

	"T101": {
		Category:   CategoryParameter,
		Message:    "Parameter has no role",
		Detail:     "Each handler parameter must carry exactly one of controller, pathData or fullEventData.",
		Suggestion: "Add the parameter to the //telepath:role directive",
	},
	"T102": {
		Category: CategoryParameter,
		Message:  "Parameter has more than one role",
		Detail:   "Each handler parameter must carry exactly one role.",
	},
	"T103": {
		Category:   CategoryParameter,
		Message:    "Handler has no controller parameter",
		Detail:     "Exactly one parameter must carry the controller role.",
		Suggestion: "Add name=controller to the //telepath:role directive",
	},
	"T104": {
		Category: CategoryParameter,
		Message:  "Role declared on more than one parameter",
		Detail:   "Each role may be carried by at most one parameter.",
	},
	"T105": {
		Category:   CategoryParameter,
		Message:    "Handler must be an exported top-level function",
		Detail:     "Route handlers are called from generated code, so they cannot be methods or unexported.",
		Suggestion: "Move the handler to an exported package-level function",
	},
	"T106": {
		Category: CategoryParameter,
		Message:  "Handler function does not match its parameters",
		Detail:   "The function's signature must match the declared parameters and return nothing or an error.",
	},

	// Conflicts (T200-T299)

	"T201": {
		Category:   CategoryConflict,
		Message:    "Route path conflict",
		Detail:     "Two routes could both accept the same input path.",
		Suggestion: "Change one of the paths or drop the prefix flag",
	},

	// Tooling (T300-T399)

	"T301": {
		Category: CategoryScan,
		Message:  "Invalid telepath directive",
	},
	"T302": {
		Category: CategoryScan,
		Message:  "Failed to parse Go source",
	},
	"T303": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create telepath.json or telepath.yaml at the project root",
	},
	"T304": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	"T305": {
		Category: CategoryGenerate,
		Message:  "Code generation failed",
	},
	"T306": {
		Category: CategoryGenerate,
		Message:  "Manifest emission failed",
	},
	"T307": {
		Category: CategoryScan,
		Message:  "Module path not found",
		Detail:   "Generated code imports handler packages by module path, read from go.mod.",
	},
}

// Codes returns all registered error codes in ascending order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
