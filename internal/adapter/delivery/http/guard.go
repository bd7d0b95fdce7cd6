package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

// bearerToken extracts the credential from an "Authorization: Bearer" header.
// present is false when the header is absent.
func bearerToken(r *http.Request) (token string, present bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", true
	}

	return strings.TrimSpace(token), true
}

// requireIdentity verifies the caller before any link is looked up. On
// failure it writes the 401 response and reports false.
func (h *linkHandler) requireIdentity(w http.ResponseWriter, r *http.Request) (entity.Identity, bool) {
	token, present := bearerToken(r)
	if !present {
		h.respondError(w, r, fmt.Errorf("missing credentials: %w", entity.ErrUnauthorized))
		return entity.Identity{}, false
	}

	id, err := h.verifier.Verify(token)
	if err != nil {
		h.respondError(w, r, err)
		return entity.Identity{}, false
	}

	return id, true
}

// optionalIdentity returns the zero Identity for anonymous callers. A
// credential that is present but invalid is still rejected.
func (h *linkHandler) optionalIdentity(w http.ResponseWriter, r *http.Request) (entity.Identity, bool) {
	if _, present := bearerToken(r); !present {
		return entity.Identity{}, true
	}

	return h.requireIdentity(w, r)
}
