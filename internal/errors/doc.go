// Package errors provides coded, source-located diagnostics for telepath
// tooling.
//
// Build failures in the route pipeline (bad directives, role mistakes, path
// conflicts) are reported the way a compiler reports them: a code, the
// offending declaration's position, the conflicting peer and a hint.
//
// # Error Codes
//
//   - T0xx: declaration errors (path, description, sentinels)
//   - T1xx: handler parameter roles and shape
//   - T2xx: path conflicts
//   - T3xx: scanning, configuration and generation
//
// # Usage
//
//	err := errors.New("T201").
//	    WithLocation("nav/orders.go", 14, 1).
//	    WithRelated("/orders (example.com/app/nav.Orders)")
//
//	fmt.Print(err.Format())
package errors
