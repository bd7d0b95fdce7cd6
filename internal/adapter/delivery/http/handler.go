package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

const (
	defaultQRCodeSize = 256
	minQRCodeSize     = 64
	maxQRCodeSize     = 1024

	// statusClientClosedRequest is the nginx convention for a request the
	// client abandoned before the response was written.
	statusClientClosedRequest = 499
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, healthResponse{Status: "ok"})
}

type linkUseCase interface {
	ShortenURL(ctx context.Context, targetURL, ownerID string) (*entity.Link, error)
	ResolveShortCode(ctx context.Context, shortCode string, cc entity.ClickContext) (*entity.Link, error)
	GetLink(ctx context.Context, shortCode string) (*entity.Link, error)
	ModifyURL(ctx context.Context, shortCode, targetURL string, id entity.Identity) (*entity.Link, error)
	GetLinkStats(ctx context.Context, shortCode string, id entity.Identity, q entity.StatsQuery) (*entity.Stats, error)
}

type identityVerifier interface {
	Verify(token string) (entity.Identity, error)
}

type linkHandler struct {
	useCase  linkUseCase
	verifier identityVerifier
	validate *validator.Validate
	baseURL  string
}

func newLinkHandler(useCase linkUseCase, verifier identityVerifier, validate *validator.Validate, baseURL string) *linkHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &linkHandler{
		useCase:  useCase,
		verifier: verifier,
		validate: validate,
		baseURL:  baseURL,
	}
}

func (h *linkHandler) createLink(w http.ResponseWriter, r *http.Request) {
	id, ok := h.optionalIdentity(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeLinkRequest(w, r)
	if !ok {
		return
	}

	link, err := h.useCase.ShortenURL(r.Context(), req.URL, id.Subject)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLinkResponse(link, h.baseURL))
}

func (h *linkHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.useCase.ResolveShortCode(r.Context(), shortCode, entity.ClickContext{
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.TargetURL, http.StatusTemporaryRedirect)
}

func (h *linkHandler) updateLink(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeLinkRequest(w, r)
	if !ok {
		return
	}

	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.useCase.ModifyURL(r.Context(), shortCode, req.URL, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toLinkResponse(link, h.baseURL))
}

func (h *linkHandler) getStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	q, err := parseStatsQuery(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidInputResponse(err))
		return
	}

	shortCode := chi.URLParam(r, "shortCode")

	stats, err := h.useCase.GetLinkStats(r.Context(), shortCode, id, q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(stats))
}

func (h *linkHandler) getQRCode(w http.ResponseWriter, r *http.Request) {
	size := defaultQRCodeSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minQRCodeSize || n > maxQRCodeSize {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, invalidInputResponse(fmt.Errorf("%w: size must be an integer within [%d, %d]",
				entity.ErrInvalidInput, minQRCodeSize, maxQRCodeSize)))
			return
		}
		size = n
	}

	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.useCase.GetLink(r.Context(), shortCode)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	png, err := qrcode.Encode(shortURL(h.baseURL, link.ShortCode), qrcode.Medium, size)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("failed to encode qr code: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *linkHandler) decodeLinkRequest(w http.ResponseWriter, r *http.Request) (linkRequest, bool) {
	var req linkRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return req, false
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return req, false
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return req, false
	}

	return req, true
}

// respondError maps err onto a status code. Only unexpected and transient
// failures are logged.
func (h *linkHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		render.Status(r, statusClientClosedRequest)
		render.JSON(w, r, clientClosedRequestResponse)
	case errors.Is(err, entity.ErrInvalidInput):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidInputResponse(err))
	case errors.Is(err, entity.ErrLinkNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, linkNotFoundResponse)
	case errors.Is(err, entity.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", `Bearer realm="link-shortener"`)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, unauthorizedResponse)
	case errors.Is(err, entity.ErrForbidden):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, forbiddenResponse)
	case errors.Is(err, entity.ErrTransient), errors.Is(err, entity.ErrMaxRetriesExceeded):
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		w.Header().Set("Retry-After", "1")
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, unavailableResponse)
	default:
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
	}
}

// parseStatsQuery reads the optional RFC 3339 from/to bounds and granularity.
// Granularity values are checked by the use case.
func parseStatsQuery(r *http.Request) (entity.StatsQuery, error) {
	var q entity.StatsQuery

	params := r.URL.Query()

	if v := params.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, fmt.Errorf("%w: from must be an RFC 3339 timestamp", entity.ErrInvalidInput)
		}
		q.From = t
	}

	if v := params.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, fmt.Errorf("%w: to must be an RFC 3339 timestamp", entity.ErrInvalidInput)
		}
		q.To = t
	}

	q.Granularity = entity.Granularity(params.Get("granularity"))

	return q, nil
}

// clientIP returns the host part of RemoteAddr, which middleware.RealIP has
// already replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
