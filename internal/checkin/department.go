package checkin

import "strings"

// MatchDepartment reports whether either label contains the other,
// ignoring case. "Immigration" matches "Department of Immigration and
// Emigration"; no edit-distance matching is attempted.
func MatchDepartment(payloadDepartment, terminalDepartment string) bool {
	a := strings.ToLower(payloadDepartment)
	b := strings.ToLower(terminalDepartment)
	return strings.Contains(a, b) || strings.Contains(b, a)
}
