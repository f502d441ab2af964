package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mteam-client/internal/cache"
	"mteam-client/internal/domain"
	"mteam-client/internal/downloader"
	"mteam-client/internal/ranking"
	"mteam-client/internal/repository"
	"mteam-client/internal/repository/sqlite"
	"mteam-client/internal/service"
	"mteam-client/internal/session"
	"mteam-client/internal/tracker"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	session     *session.Session
	client      *tracker.Client
	manager     downloader.Manager
	cache       *cache.ResultCache
	history     repository.HistoryRepository
	favorites   repository.FavoriteRepository
	events      repository.EventRepository
	users       service.UserService
	credentials service.CredentialService
	auth        *Auth
	logger      *logrus.Logger
}

func NewHandler(
	sess *session.Session,
	client *tracker.Client,
	manager downloader.Manager,
	resultCache *cache.ResultCache,
	history repository.HistoryRepository,
	favorites repository.FavoriteRepository,
	events repository.EventRepository,
	users service.UserService,
	creds service.CredentialService,
	auth *Auth,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		session:     sess,
		client:      client,
		manager:     manager,
		cache:       resultCache,
		history:     history,
		favorites:   favorites,
		events:      events,
		users:       users,
		credentials: creds,
		auth:        auth,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	authed := api.Group("")
	if h.auth != nil {
		authed.Use(h.auth.Middleware())
	}
	{
		authed.POST("/search", h.search)
		authed.POST("/search/more", h.loadMore)
		authed.POST("/search/appeared", h.releaseAppeared)
		authed.POST("/search/refresh", h.refresh)
		authed.PUT("/search/sort", h.setSort)
		authed.GET("/search/state", h.searchState)

		authed.GET("/history", h.listHistory)
		authed.DELETE("/history", h.clearHistory)
		authed.DELETE("/history/entry", h.removeHistory)

		authed.GET("/favorites", h.listFavorites)
		authed.PUT("/favorites/:id", h.addFavorite)
		authed.DELETE("/favorites/:id", h.removeFavorite)

		authed.GET("/events", h.listEvents)

		authed.POST("/torrents/:id/download", h.downloadTorrent)
		authed.GET("/downloads", h.listDownloads)
		authed.GET("/downloads/active", h.activeDownloads)
		authed.DELETE("/downloads/:id", h.deleteDownload)

		authed.POST("/cache/clear", h.clearCache)
		authed.GET("/images", h.proxyImage)

		authed.GET("/settings/apikey", h.apiKeyStatus)
		authed.PUT("/settings/apikey", h.setAPIKey)
		authed.DELETE("/settings/apikey", h.clearAPIKey)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required"`
	RegisterPassword string `json:"registerPassword"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RegisterPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegistrationPassword):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.Issue(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "username": user.Username})
}

type searchRequest struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

func (h *Handler) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.session.Submit(c.Request.Context(), req.Keyword, domain.ParseCategory(req.Category)); err != nil {
		h.trackerError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *Handler) loadMore(c *gin.Context) {
	if err := h.session.LoadMore(c.Request.Context()); err != nil {
		h.trackerError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

type appearedRequest struct {
	ReleaseID string `json:"releaseId" binding:"required"`
}

func (h *Handler) releaseAppeared(c *gin.Context) {
	var req appearedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.session.ReleaseAppeared(c.Request.Context(), req.ReleaseID); err != nil {
		h.trackerError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *Handler) refresh(c *gin.Context) {
	if err := h.session.Refresh(c.Request.Context()); err != nil {
		h.trackerError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse())
}

type sortRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *Handler) setSort(c *gin.Context) {
	var req sortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.session.SetSort(ranking.ParseSortMode(req.Mode))
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *Handler) searchState(c *gin.Context) {
	c.JSON(http.StatusOK, h.stateResponse())
}

func (h *Handler) listHistory(c *gin.Context) {
	entries, err := h.history.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) clearHistory(c *gin.Context) {
	if err := h.history.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeHistory(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}
	category := domain.ParseCategory(c.Query("category"))

	if err := h.history.Remove(c.Request.Context(), keyword, category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listFavorites(c *gin.Context) {
	ids, err := h.favorites.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (h *Handler) addFavorite(c *gin.Context) {
	if err := h.favorites.Add(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeFavorite(c *gin.Context) {
	if err := h.favorites.Remove(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listEvents(c *gin.Context) {
	ids, err := h.events.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ids)
}

type downloadRequest struct {
	Name string `json:"name"`
}

// downloadTorrent resolves a one-time download URL for the release and hands
// it to the task manager.
func (h *Handler) downloadTorrent(c *gin.Context) {
	releaseID := c.Param("id")

	// the body carries an optional display name only
	var req downloadRequest
	_ = c.ShouldBindJSON(&req)

	downloadURL, err := h.client.GenDownloadToken(c.Request.Context(), releaseID)
	if err != nil {
		h.trackerError(c, err)
		return
	}

	taskID, err := h.manager.Enqueue(downloader.Request{
		SourceURL:   downloadURL,
		ReleaseName: req.Name,
		ReleaseID:   releaseID,
	})
	if err != nil {
		h.trackerError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"taskId": taskID})
}

func (h *Handler) listDownloads(c *gin.Context) {
	files, err := h.manager.History(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) activeDownloads(c *gin.Context) {
	tasks := h.manager.Tasks()
	resp := make([]TaskResponse, len(tasks))
	for i := range tasks {
		resp[i] = taskToResponse(tasks[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deleteDownload(c *gin.Context) {
	err := h.manager.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrDownloadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) clearCache(c *gin.Context) {
	h.cache.Clear()
	c.Status(http.StatusNoContent)
}

// proxyImage serves tracker poster images through the cache's image tier.
func (h *Handler) proxyImage(c *gin.Context) {
	imageURL := c.Query("url")
	if imageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	if data := h.cache.GetImage(imageURL); data != nil {
		c.Data(http.StatusOK, http.DetectContentType(data), data)
		return
	}

	data, err := h.client.FetchImage(c.Request.Context(), imageURL)
	if err != nil {
		h.trackerError(c, err)
		return
	}
	h.cache.PutImage(imageURL, data)
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func (h *Handler) apiKeyStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"configured": h.credentials.HasKey()})
}

type apiKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *Handler) setAPIKey(c *gin.Context) {
	var req apiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.credentials.ValidateAndStore(c.Request.Context(), req.Key); err != nil {
		h.trackerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configured": true})
}

func (h *Handler) clearAPIKey(c *gin.Context) {
	if err := h.credentials.ClearKey(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// trackerError maps the error taxonomy onto HTTP status codes.
func (h *Handler) trackerError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch tracker.KindOf(err) {
	case tracker.KindInvalidCredential:
		status = http.StatusUnauthorized
	case tracker.KindInvalidURL:
		status = http.StatusBadRequest
	case tracker.KindNetwork:
		status = http.StatusBadGateway
	case tracker.KindRemoteAPI, tracker.KindDecoding:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type ReleaseResponse struct {
	domain.Release
	DisplayTitle string  `json:"displayTitle"`
	SizeGB       float64 `json:"sizeGB"`
	Resolution   string  `json:"resolution"`
	Health       string  `json:"health"`
	Score        float64 `json:"score"`
	Recommended  bool    `json:"recommended"`
	Oversized    bool    `json:"oversized"`
	SizeWarning  string  `json:"sizeWarning,omitempty"`
}

type StateResponse struct {
	Keyword      string            `json:"keyword"`
	Category     domain.Category   `json:"category"`
	Sort         ranking.SortMode  `json:"sort"`
	Releases     []ReleaseResponse `json:"releases"`
	CurrentPage  int               `json:"currentPage"`
	HasMore      bool              `json:"hasMore"`
	TotalCount   int               `json:"totalCount"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

func (h *Handler) stateResponse() StateResponse {
	state := h.session.Snapshot()
	resp := StateResponse{
		Keyword:      state.Keyword,
		Category:     state.Category,
		Sort:         state.Sort,
		Releases:     make([]ReleaseResponse, len(state.Releases)),
		CurrentPage:  state.CurrentPage,
		HasMore:      state.HasMore,
		TotalCount:   state.TotalCount,
		ErrorMessage: state.ErrorMessage,
	}
	for i, r := range state.Releases {
		resp.Releases[i] = releaseToResponse(r)
	}
	return resp
}

func releaseToResponse(r domain.Release) ReleaseResponse {
	return ReleaseResponse{
		Release:      r,
		DisplayTitle: r.DisplayTitle(),
		SizeGB:       r.SizeGB(),
		Resolution:   r.Resolution().String(),
		Health:       string(r.Health()),
		Score:        ranking.Score(r),
		Recommended:  ranking.Recommended(r),
		Oversized:    ranking.Oversized(r),
		SizeWarning:  ranking.OversizeWarning(r),
	}
}

type TaskResponse struct {
	ID          string  `json:"id"`
	SourceURL   string  `json:"sourceUrl"`
	ReleaseName string  `json:"releaseName"`
	ReleaseID   string  `json:"releaseId"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"`
	StartedAt   string  `json:"startedAt"`
}

func taskToResponse(task domain.DownloadTask) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		SourceURL:   task.SourceURL,
		ReleaseName: task.ReleaseName,
		ReleaseID:   task.ReleaseID,
		State:       string(task.State),
		Progress:    task.Progress,
		StartedAt:   task.StartedAt.Format(time.RFC3339),
	}
}
