package middleware

import (
	"net/http"

	jww "github.com/spf13/jwalterweatherman"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			jww.DEBUG.Printf("cors: preflight for %s", r.URL.Path)
			return
		}

		next.ServeHTTP(w, r)
	})
}
