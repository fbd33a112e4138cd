// Package version provides middleware for API version extraction.
package version

import (
	"net/http"

	id "idcheck/pkg/domain"
	"idcheck/pkg/requestcontext"
)

// HeaderAPIVersion is set on every versioned response.
const HeaderAPIVersion = "API-Version"

// ExtractVersion creates middleware that records the API version of a Chi subrouter.
// When using Chi's r.Route("/v1", ...), the version is already determined by the route match.
//
//	r.Route("/v1", func(v1 chi.Router) {
//	    v1.Use(version.ExtractVersion(id.APIVersionV1))
//	    // ... routes
//	})
func ExtractVersion(version id.APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderAPIVersion, version.String())
			ctx := requestcontext.WithAPIVersion(r.Context(), version)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
