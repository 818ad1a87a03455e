// Package server exposes the compile-preview and document delivery API.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ncklrs/contentbridge-sub000/internal/store/postgres"
	"github.com/ncklrs/contentbridge-sub000/pkg/pagination"
	"github.com/ncklrs/contentbridge-sub000/pkg/query"
	"github.com/ncklrs/contentbridge-sub000/pkg/query/expr"
	restparams "github.com/ncklrs/contentbridge-sub000/pkg/query/params"
	"github.com/ncklrs/contentbridge-sub000/pkg/query/sqlstore"
	"github.com/ncklrs/contentbridge-sub000/pkg/query/wheretree"
)

// DocumentStore is the persistence interface the document endpoints use.
type DocumentStore interface {
	Search(ctx context.Context, cfg query.Config) (*postgres.SearchResult, error)
	GetByID(ctx context.Context, docType, id string) (*postgres.Document, error)
	ReferencedBy(ctx context.Context, id string) ([]*postgres.Document, error)
	Put(ctx context.Context, doc *postgres.Document) error
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store DocumentStore

	expr  *expr.Compiler
	rest  *restparams.Compiler
	trees *wheretree.Compiler
	sql   *sqlstore.Compiler
}

func NewHandler(store DocumentStore, opts query.Options) *Handler {
	return &Handler{
		store: store,
		expr:  expr.New(opts),
		rest:  restparams.New(opts),
		trees: wheretree.New(opts),
		sql:   sqlstore.New(opts),
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/compile/:target", h.Compile)
	api.POST("/documents/search", h.SearchDocuments)
	api.GET("/documents/:type", h.ListDocuments)
	api.GET("/documents/:type/:id", h.GetDocument)
	api.PUT("/documents/:type/:id", h.PutDocument)
	api.DELETE("/documents/:type/:id", h.DeleteDocument)
	api.GET("/references/:id", h.ReferencedBy)
}

// Compile translates a query config to the named target's native
// representation without executing it.
func (h *Handler) Compile(c echo.Context) error {
	var cfg query.Config
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var (
		out any
		err error
	)
	switch target := c.Param("target"); target {
	case "expr":
		out, err = h.expr.Compile(cfg)
	case "params":
		out, err = h.rest.Compile(cfg)
	case "wheretree":
		out, err = h.trees.Compile(cfg)
	case "sql":
		out, err = h.sql.Compile(cfg)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown compile target: "+target)
	}
	if err != nil {
		return compileHTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// SearchDocuments compiles the config for the document store and executes it.
func (h *Handler) SearchDocuments(c echo.Context) error {
	var cfg query.Config
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.store.Search(c.Request().Context(), cfg)
	if err != nil {
		return compileHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	p := pagination.FromContext(c)
	result, err := h.store.Search(c.Request().Context(), query.GetByType(c.Param("type"), p.Limit, p.Offset))
	if err != nil {
		return compileHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(result.Documents, result.Total, p.Limit, p.Offset))
}

func (h *Handler) GetDocument(c echo.Context) error {
	doc, err := h.store.GetByID(c.Request().Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return compileHTTPError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) PutDocument(c echo.Context) error {
	var doc postgres.Document
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc.Type = c.Param("type")
	if err := doc.ID.UnmarshalText([]byte(c.Param("id"))); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.store.Put(c.Request().Context(), &doc); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReferencedBy(c echo.Context) error {
	docs, err := h.store.ReferencedBy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return compileHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}

// compileHTTPError maps compiler failures to HTTP statuses: malformed
// configs are the client's fault, strict-mode degradations are
// unprocessable, anything else is a server error.
func compileHTTPError(err error) error {
	var structural *query.StructuralError
	if errors.As(err, &structural) {
		return echo.NewHTTPError(http.StatusBadRequest, structural.Error())
	}
	var degrade *query.DegradeError
	if errors.As(err, &degrade) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"error":   "query cannot compile without losing meaning",
			"notices": degrade.Notices,
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
