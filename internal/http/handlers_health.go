package httpx

import (
	"io"
	"net/http"
)

// healthBody is static. The endpoint serves load balancer liveness probes;
// dependency health (Postgres, Redis, ledger) is not reported here.
const healthBody = `{"status":"ok","service":"opsdesk"}`

// healthHandler answers GET and HEAD /healthz without touching any backend.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthBody); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
