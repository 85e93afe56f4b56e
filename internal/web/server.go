// Package web exposes the card service over HTTP with gin.
package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lunar-card/internal/auth"
	"lunar-card/internal/model"
	"lunar-card/internal/service"
)

// Records is the administrative part of the notification gateway.
type Records interface {
	ListViews(ctx context.Context, n int) ([]*model.View, error)
	ListWishes(ctx context.Context, n int) ([]*model.Wish, error)
	ListFortunes(ctx context.Context, n int) ([]*model.Fortune, error)
	Delete(ctx context.Context, kind model.RecordKind, id string) error
}

// Options configures the router.
type Options struct {
	// StaticDir holds the card page. Empty serves no page.
	StaticDir string
	// AvatarsDir is served under /avatars. Empty serves no avatars.
	AvatarsDir string
	// Health checks the backing store. Nil always reports healthy.
	Health func(ctx context.Context) error
}

// Server holds the handlers' dependencies.
type Server struct {
	cards   *service.CardService
	records Records
	issuer  *auth.Issuer
	opts    Options
}

// NewServer creates a new Server instance.
func NewServer(cards *service.CardService, records Records, issuer *auth.Issuer, opts Options) *Server {
	return &Server{cards: cards, records: records, issuer: issuer, opts: opts}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware(), LoggingMiddleware())

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		api.POST("/visits", s.createVisit)
		api.GET("/profiles", s.searchProfiles)
		api.GET("/profiles/:key/hint", s.hint)
	}

	visitGroup := api.Group("/visit")
	visitGroup.Use(VisitMiddleware(s.issuer))
	{
		visitGroup.GET("", s.snapshot)
		visitGroup.DELETE("", s.endVisit)
		visitGroup.POST("/select", s.selectProfile)
		visitGroup.POST("/unlock", s.unlock)
		visitGroup.POST("/owner-view", s.ownerView)
		visitGroup.POST("/logout", s.logout)
		visitGroup.POST("/greeting", s.nextGreeting)
		visitGroup.PUT("/year", s.setYear)
		visitGroup.POST("/wish", s.submitWish)
		visitGroup.POST("/luck", s.enterLuck)

		flowGroup := visitGroup.Group("/flow")
		flowGroup.POST("/start", s.flowStep(s.cards.StartFlow))
		flowGroup.POST("/back", s.flowStep(s.cards.BackFlow))
		flowGroup.POST("/next", s.flowStep(s.cards.NextFlow))
		flowGroup.POST("/exit", s.flowStep(s.cards.ExitFlow))
		flowGroup.POST("/bank", s.confirmBank)
		flowGroup.POST("/spin", s.spin)
		flowGroup.POST("/shake", s.shake)
		flowGroup.POST("/finish", s.finish)
	}

	api.POST("/admin/login", s.adminLogin)
	adminGroup := api.Group("/admin")
	adminGroup.Use(AdminMiddleware(s.issuer))
	{
		adminGroup.GET("/views", s.listViews)
		adminGroup.GET("/wishes", s.listWishes)
		adminGroup.GET("/fortunes", s.listFortunes)
		adminGroup.DELETE("/:kind/:id", s.deleteRecord)
	}

	if s.opts.AvatarsDir != "" {
		router.Static("/avatars", s.opts.AvatarsDir)
	}
	if s.opts.StaticDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.opts.StaticDir))))
	}

	return router
}

func (s *Server) health(c *gin.Context) {
	if s.opts.Health != nil {
		if err := s.opts.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func visitID(c *gin.Context) string {
	return c.GetString(visitIDKey)
}

func (s *Server) createVisit(c *gin.Context) {
	snap := s.cards.CreateVisit(c.Request.UserAgent())
	token, err := s.issuer.IssueVisit(snap.VisitID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "visit": snap})
}

func (s *Server) searchProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, s.cards.SearchProfiles(c.Query("q")))
}

func (s *Server) hint(c *gin.Context) {
	hint, err := s.cards.Hint(c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hint": hint})
}

func (s *Server) snapshot(c *gin.Context) {
	snap, err := s.cards.Snapshot(c.Request.Context(), visitID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) endVisit(c *gin.Context) {
	if err := s.cards.EndVisit(c.Request.Context(), visitID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type keyRequest struct {
	Key string `json:"key"`
}

func (s *Server) selectProfile(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := s.cards.Select(c.Request.Context(), visitID(c), req.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type unlockRequest struct {
	Passphrase string `json:"passphrase"`
}

func (s *Server) unlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := s.cards.Unlock(c.Request.Context(), visitID(c), req.Passphrase)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) ownerView(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := s.cards.OwnerView(c.Request.Context(), visitID(c), req.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) logout(c *gin.Context) {
	snap, err := s.cards.Logout(c.Request.Context(), visitID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) nextGreeting(c *gin.Context) {
	snap, err := s.cards.NextGreeting(c.Request.Context(), visitID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type yearRequest struct {
	Year string `json:"year"`
}

func (s *Server) setYear(c *gin.Context) {
	var req yearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := s.cards.SetYear(c.Request.Context(), visitID(c), req.Year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type wishRequest struct {
	Message string `json:"message"`
}

func (s *Server) submitWish(c *gin.Context) {
	var req wishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := s.cards.SubmitWish(c.Request.Context(), visitID(c), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) enterLuck(c *gin.Context) {
	snap, err := s.cards.EnterLuck(c.Request.Context(), visitID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type flowFunc func(ctx context.Context, id string) (*service.Snapshot, error)

func (s *Server) flowStep(step flowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := step(c.Request.Context(), visitID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

type bankRequest struct {
	BankName    string `json:"bankName"`
	BankAccount string `json:"bankAccount"`
}

func (s *Server) confirmBank(c *gin.Context) {
	var req bankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := s.cards.ConfirmBank(c.Request.Context(), visitID(c), req.BankName, req.BankAccount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) spin(c *gin.Context) {
	spin, snap, err := s.cards.Spin(c.Request.Context(), visitID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spin": spin, "visit": snap})
}

func (s *Server) shake(c *gin.Context) {
	reveal, snap, err := s.cards.Shake(c.Request.Context(), visitID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reveal": reveal, "visit": snap})
}

func (s *Server) finish(c *gin.Context) {
	out, err := s.cards.Finish(c.Request.Context(), visitID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

func (s *Server) adminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := s.issuer.LoginAdmin(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func listLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) listViews(c *gin.Context) {
	views, err := s.records.ListViews(c.Request.Context(), listLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) listWishes(c *gin.Context) {
	wishes, err := s.records.ListWishes(c.Request.Context(), listLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wishes)
}

func (s *Server) listFortunes(c *gin.Context) {
	fortunes, err := s.records.ListFortunes(c.Request.Context(), listLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fortunes)
}

func (s *Server) deleteRecord(c *gin.Context) {
	kind := model.RecordKind(c.Param("kind"))
	if err := s.records.Delete(c.Request.Context(), kind, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
