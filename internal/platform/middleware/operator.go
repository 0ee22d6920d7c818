package middleware

import (
	"net/http"
	"strings"

	"bullion/pkg/requestcontext"
)

// OperatorHeader carries the desk operator recording the request.
const OperatorHeader = "X-Operator"

const systemOperator = "system"

// Operator stores the calling operator in the request context so services can
// stamp deliveries and compliance events. Requests without the header are
// attributed to the system operator.
func Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator := strings.TrimSpace(r.Header.Get(OperatorHeader))
		if operator == "" {
			operator = systemOperator
		}
		if len(operator) > 64 {
			operator = operator[:64]
		}
		ctx := requestcontext.WithActor(r.Context(), operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
