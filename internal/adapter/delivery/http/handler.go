package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error)
	ListActiveURLs(ctx context.Context) ([]entity.URL, error)
	ListExpiredURLs(ctx context.Context) ([]entity.URL, error)
	PurgeExpiredURLs(ctx context.Context) (int64, error)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for an empty tag or a nil func.
	_ = validate.RegisterValidation("notblank", validators.NotBlank)

	return validate
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	baseURL  string
	now      func() time.Time
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate, baseURL string, now func() time.Time) *urlHandler {
	return &urlHandler{
		useCase:  useCase,
		validate: validate,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      now,
	}
}

// shortURL joins the short code onto the configured base URL, or onto the
// scheme and host of the request when no base URL is configured.
func (h *urlHandler) shortURL(r *http.Request, shortCode string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}

	return base + "/" + shortCode
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	url, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidURL) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, invalidURLResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toURLResponse(url, h.shortURL(r, url.ShortCode)))
}

func (h *urlHandler) resolveShortCode(w http.ResponseWriter, r *http.Request) {
	url, ok := h.lookup(w, r, h.useCase.ResolveShortCode)
	if !ok {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponse(url, h.shortURL(r, url.ShortCode)))
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	url, ok := h.lookup(w, r, h.useCase.ResolveShortCode)
	if !ok {
		return
	}

	// Stored URLs are opaque; http.Redirect would rewrite scheme-less ones
	// into paths on this host.
	w.Header().Set("Location", url.OriginalURL)
	w.WriteHeader(http.StatusFound)
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	url, ok := h.lookup(w, r, h.useCase.GetURLStats)
	if !ok {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLStatsResponse(url, h.shortURL(r, url.ShortCode), h.now()))
}

// lookup runs find with the shortCode path parameter and writes the error
// response itself when the URL cannot be returned.
func (h *urlHandler) lookup(
	w http.ResponseWriter,
	r *http.Request,
	find func(ctx context.Context, shortCode string) (*entity.URL, error),
) (*entity.URL, bool) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := find(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return nil, false
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return nil, false
	}

	return url, true
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	var (
		urls []entity.URL
		err  error
	)

	switch status := r.URL.Query().Get("status"); status {
	case "", listStatusActive:
		urls, err = h.useCase.ListActiveURLs(r.Context())
	case listStatusExpired:
		urls, err = h.useCase.ListExpiredURLs(r.Context())
	default:
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidListStatusResponse)
		return
	}

	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	resp := urlListResponse{
		Status: "ok",
		Count:  len(urls),
		URLs:   make([]urlResponse, 0, len(urls)),
	}
	for i := range urls {
		resp.URLs = append(resp.URLs, toURLResponse(&urls[i], h.shortURL(r, urls[i].ShortCode)))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *urlHandler) purgeExpiredURLs(w http.ResponseWriter, r *http.Request) {
	n, err := h.useCase.PurgeExpiredURLs(r.Context())
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, purgeResponse{Deleted: n})
}
