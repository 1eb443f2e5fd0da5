// response.go — shared JSON error envelope used by auth middleware and
// any handler that refuses a request before reaching its service.
package auth

import (
	"fmt"
	"net/http"
)

// WriteError writes the standard Flixsy JSON error envelope:
//
//	{"error":{"code":"...","message":"..."}}
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, code, message)
}
