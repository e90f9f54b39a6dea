// Package filter — adding a custom filter operator:
//
//  1. Add a RegisterCustom call in this file.
//  2. Add the evaluation logic in evaluator.go.
//  3. Sync frontend types with `go generate`.
//
// Removing one:
//
//  1. Remove the Register call from this file.
//  2. Remove the matching logic from evaluator.go.
//  3. Sync frontend types with `go generate`.
package filter

func init() {
	// ========================================
	// Custom operator registration examples.
	// Uncomment to enable.
	// ========================================

	// Example 1: IP address in CIDR range.
	// RegisterCustom(
	// 	"ip_in_range",        // ID (used in code)
	// 	"In IP range",        // Label (shown in GUI)
	// 	"checks whether the IP falls within the CIDR range", // Description
	// 	true,                 // needs a value
	// 	"string",             // value type (string, number, array, regex)
	// 	"network",            // category
	// )

	// Example 2: date/time comparison.
	// RegisterCustom(
	// 	"date_after",
	// 	"After date",
	// 	"checks whether the value is after the given date",
	// 	true,
	// 	"string", // ISO8601
	// 	"datetime",
	// )

	// RegisterCustom(
	// 	"date_before",
	// 	"Before date",
	// 	"checks whether the value is before the given date",
	// 	true,
	// 	"string",
	// 	"datetime",
	// )

	// Example 3: JSON Path existence check.
	// RegisterCustom(
	// 	"jsonpath_exists",
	// 	"JSON Path exists",
	// 	"checks whether the JSON Path resolves to a value",
	// 	true,
	// 	"string",
	// 	"json",
	// )

	// ========================================
	// Removing a filter: deleting the RegisterCustom call above and
	// re-running go generate drops it from the frontend too.
	// ========================================
}

// ========================================
// Adding evaluation logic for a custom operator
// ========================================
//
// Add a case to the compare method in evaluator.go:
//
//   case "ip_in_range":
//       return evalIPInRange(fieldValue, compareValue)
//
// and implement the evaluation function:
//
//   func evalIPInRange(fieldValue any, cidr any) (bool, error) {
//       ip := net.ParseIP(toString(fieldValue))
//       _, network, err := net.ParseCIDR(toString(cidr))
//       if err != nil {
//           return false, err
//       }
//       return network.Contains(ip), nil
//   }
