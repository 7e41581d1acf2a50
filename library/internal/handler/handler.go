package handler

import (
	"net/http"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/model"
	md "github.com/Astemirdum/library-catalog/pkg/middleware"
	"github.com/Astemirdum/library-catalog/pkg/validate"
	_ "github.com/Astemirdum/library-catalog/swagger" // swagger spec
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

type Handler struct {
	catalogSvc CatalogService
	authSvc    AuthService
	log        *zap.Logger
}

func New(catalogSvc CatalogService, authSvc AuthService, log *zap.Logger) *Handler {
	return &Handler{
		catalogSvc: catalogSvc,
		authSvc:    authSvc,
		log:        log.Named("handler"),
	}
}

// @title       Library Catalog API
// @version     1.0
// @BasePath    /api/v1
// @securityDefinitions.apikey Bearer
// @in          header
// @name        Authorization
func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Validator = validate.NewCustomValidator()

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	admin := md.AdminAuth(h.authSvc)
	logged := middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log))

	api := e.Group("/api/v1",
		logged,
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)
	api.GET("/snapshot", h.GetSnapshot)
	api.GET("/books", h.ListBooks)
	api.GET("/books/:id", h.GetBook)
	api.GET("/catalog", h.GetCatalog)
	api.GET("/categories", h.ListCategories)
	api.POST("/books/:id/request", h.RequestBorrow)
	api.POST("/auth/login", h.Login)

	api.POST("/books", h.AddBook, admin)
	api.POST("/books/:id/approve", h.ApproveBorrow, admin)
	api.POST("/books/:id/reject", h.RejectBorrow, admin)
	api.POST("/books/:id/return", h.ReturnBook, admin)
	api.DELETE("/books/:id", h.DeleteBook, admin)
	api.POST("/categories", h.AddCategory, admin)
	api.GET("/dashboard", h.GetDashboard, admin)
	api.POST("/auth/logout", h.Logout, admin)
	api.PUT("/auth/password", h.ChangePassword, admin)

	data := e.Group("/data", logged, middleware.RequestID(), md.NewRateLimiter(apiRPS), admin)
	data.GET("", h.GetData)
	data.POST("", h.PostData)
	data.PUT("", h.PutData)
	data.DELETE("", h.DeleteData)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetSnapshot godoc
// @Summary  Whole catalog with its version
// @Tags     catalog
// @Produce  json
// @Success  200 {object} model.Snapshot
// @Router   /snapshot [get]
func (h *Handler) GetSnapshot(c echo.Context) error {
	snap, err := h.catalogSvc.Snapshot(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// ListBooks godoc
// @Summary  Search books
// @Tags     books
// @Produce  json
// @Param    q          query string false "name or author substring"
// @Param    categoryId query string false "category id, all for any"
// @Param    status     query string false "available, requested or borrowed"
// @Success  200 {array} model.Book
// @Router   /books [get]
func (h *Handler) ListBooks(c echo.Context) error {
	filter, err := bindFilter(c)
	if err != nil {
		return err
	}
	books, err := h.catalogSvc.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

// GetBook godoc
// @Summary  Book by id
// @Tags     books
// @Produce  json
// @Param    id path string true "book id"
// @Success  200 {object} model.Book
// @Failure  404 {object} echo.HTTPError
// @Router   /books/{id} [get]
func (h *Handler) GetBook(c echo.Context) error {
	book, err := h.catalogSvc.GetBook(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

// GetCatalog godoc
// @Summary  Books grouped by category
// @Tags     catalog
// @Produce  json
// @Param    q          query string false "name or author substring"
// @Param    categoryId query string false "category id, all for any"
// @Success  200 {array} model.CategoryBooks
// @Router   /catalog [get]
func (h *Handler) GetCatalog(c echo.Context) error {
	filter, err := bindFilter(c)
	if err != nil {
		return err
	}
	groups, err := h.catalogSvc.Catalog(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) ListCategories(c echo.Context) error {
	categories, err := h.catalogSvc.ListCategories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, categories)
}

// RequestBorrow godoc
// @Summary  Ask to borrow an available book
// @Tags     books
// @Accept   json
// @Produce  json
// @Param    id   path string                     true  "book id"
// @Param    body body model.RequestBorrowRequest false "borrower"
// @Success  200 {object} model.Book
// @Failure  409 {object} echo.HTTPError
// @Router   /books/{id}/request [post]
func (h *Handler) RequestBorrow(c echo.Context) error {
	var req model.RequestBorrowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.catalogSvc.RequestBorrow(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

// AddBook godoc
// @Summary  Add a book
// @Tags     admin
// @Security Bearer
// @Accept   json
// @Produce  json
// @Param    body body model.AddBookRequest true "book"
// @Success  201 {object} model.Book
// @Failure  409 {object} echo.HTTPError
// @Router   /books [post]
func (h *Handler) AddBook(c echo.Context) error {
	var req model.AddBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.catalogSvc.AddBook(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

// ApproveBorrow godoc
// @Summary  Approve a borrow request
// @Tags     admin
// @Security Bearer
// @Accept   json
// @Produce  json
// @Param    id   path string                     true "book id"
// @Param    body body model.ApproveBorrowRequest true "due date and borrower"
// @Success  200 {object} model.Book
// @Failure  409 {object} echo.HTTPError
// @Router   /books/{id}/approve [post]
func (h *Handler) ApproveBorrow(c echo.Context) error {
	var req model.ApproveBorrowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.catalogSvc.ApproveBorrow(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) RejectBorrow(c echo.Context) error {
	book, err := h.catalogSvc.RejectBorrow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) ReturnBook(c echo.Context) error {
	book, err := h.catalogSvc.ReturnBook(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	if err := h.catalogSvc.DeleteBook(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddCategory(c echo.Context) error {
	var req model.AddCategoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	category, err := h.catalogSvc.AddCategory(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, category)
}

// GetDashboard godoc
// @Summary  Requested, borrowed and overdue books
// @Tags     admin
// @Security Bearer
// @Produce  json
// @Success  200 {object} model.Dashboard
// @Router   /dashboard [get]
func (h *Handler) GetDashboard(c echo.Context) error {
	dash, err := h.catalogSvc.Dashboard(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dash)
}

func bindFilter(c echo.Context) (model.BookFilter, error) {
	var filter model.BookFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return filter, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, echo.NewHTTPError(http.StatusBadRequest, "status is invalid")
	}
	return filter, nil
}

func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTransition),
		errors.Is(err, errs.ErrDuplicateName),
		errors.Is(err, errs.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrWrongCode):
		code = http.StatusUnauthorized
	case errors.Is(err, errs.ErrWrongCurrentPassword):
		code = http.StatusForbidden
	}
	return echo.NewHTTPError(code, err.Error())
}
