package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Routes registers the HTTP API on router.
func (a *App) Routes(router *gin.Engine) {
	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api")
	api.POST("/register", a.RegisterHandler)
	api.POST("/login", a.LoginHandler)
	api.GET("/teams", a.ListTeamsHandler)
	api.GET("/teams/:team/roster", a.RosterHandler)

	member := api.Group("", a.AuthMiddleware())
	{
		member.POST("/availability", a.DeclareHandler)
		member.GET("/availability", a.ListAvailabilityHandler)
		member.DELETE("/availability/:date", a.WithdrawHandler)
		member.GET("/notifications", a.NotificationsHandler)
	}

	manager := api.Group("", a.AuthMiddleware(), RequireManager())
	{
		manager.GET("/approvals", a.ListPendingHandler)
		manager.POST("/approvals", a.ResolveHandler)
		manager.GET("/calendar/auth", a.GoogleAuthHandler)
	}
}

// writeError maps core errors to HTTP statuses.
func (a *App) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrRange), errors.Is(err, ErrUnknownTeam):
		status = http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type registerReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required"`
	Team     string `json:"team" binding:"required"`
}

// POST /api/register
func (a *App) RegisterHandler(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := a.Register(c.Request.Context(), req.Username, req.Password, req.Role, req.Team)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, id)
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/login
func (a *App) LoginHandler(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := a.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.writeError(c, err)
		return
	}
	token, exp, err := a.Tokens.Issue(id)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp,
		"user":       id,
	})
}

// GET /api/teams
func (a *App) ListTeamsHandler(c *gin.Context) {
	teams, err := a.Teams(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

// GET /api/teams/:team/roster?date=YYYY-MM-DD (defaults to today)
func (a *App) RosterHandler(c *gin.Context) {
	date := a.today()
	if s := c.Query("date"); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			a.writeError(c, err)
			return
		}
		date = d
	}
	roster, err := a.RosterFor(c.Request.Context(), c.Param("team"), date)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

type declareReq struct {
	Status    StatusKind `json:"status" binding:"required"`
	StartDate Date       `json:"start_date" binding:"required"`
	EndDate   Date       `json:"end_date" binding:"required"`
}

type dayOutcomeResp struct {
	DayOutcome
	Error string `json:"error,omitempty"`
}

// POST /api/availability
// Duplicate days are reported per day and do not fail the request.
func (a *App) DeclareHandler(c *gin.Context) {
	var req declareReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := currentIdentity(c)
	outcomes, err := a.Declare(c.Request.Context(), Declaration{
		Owner: id.Username,
		Kind:  req.Status,
		Start: req.StartDate,
		End:   req.EndDate,
		Team:  id.Team,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	resp := make([]dayOutcomeResp, 0, len(outcomes))
	for _, o := range outcomes {
		r := dayOutcomeResp{DayOutcome: o}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		resp = append(resp, r)
	}
	c.JSON(http.StatusCreated, gin.H{"days": resp})
}

// GET /api/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	records, err := a.Upcoming(c.Request.Context(), currentIdentity(c).Username)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// DELETE /api/availability/:date
func (a *App) WithdrawHandler(c *gin.Context) {
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	if err := a.Withdraw(c.Request.Context(), currentIdentity(c).Username, date); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/notifications
func (a *App) NotificationsHandler(c *gin.Context) {
	notes, err := a.DrainNotifications(c.Request.Context(), currentIdentity(c).Username)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes, "count": len(notes)})
}

// GET /api/approvals?from=YYYY-MM-DD (defaults to today)
func (a *App) ListPendingHandler(c *gin.Context) {
	from := a.today()
	if s := c.Query("from"); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			a.writeError(c, err)
			return
		}
		from = d
	}
	days, err := a.ListPending(c.Request.Context(), currentIdentity(c).Team, from)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

type resolveReq struct {
	Decision ApprovalState `json:"decision" binding:"required"`
	Records  []RecordKey   `json:"records" binding:"required,min=1,dive"`
}

// POST /api/approvals
// Managers may only resolve records of their own team.
func (a *App) ResolveHandler(c *gin.Context) {
	var req resolveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	mgr := currentIdentity(c)

	teamRecords, err := a.Query(ctx, Filter{Team: mgr.Team})
	if err != nil {
		a.writeError(c, err)
		return
	}
	owned := make(map[RecordKey]bool, len(teamRecords))
	for _, r := range teamRecords {
		owned[r.Key()] = true
	}
	for _, k := range req.Records {
		if !owned[k] {
			// records of other teams look the same as missing ones
			a.writeError(c, &NotFoundError{Key: k})
			return
		}
	}

	resolved, err := a.Resolve(ctx, req.Records, req.Decision)
	if err != nil && len(resolved) == 0 {
		a.writeError(c, err)
		return
	}
	resp := gin.H{"resolved": resolved}
	if err != nil {
		a.logger().Warn("partial resolve", zap.String("manager", mgr.Username), zap.Error(err))
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
