package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/dashboard"
	"classroll/internal/directory"
	"classroll/internal/insights"
	"classroll/internal/queue"
)

const publishTimeout = 2 * time.Second

type handler struct {
	Deps
	log zerolog.Logger
}

func (h *handler) tokenResponse(c *gin.Context, u directory.User) {
	tokens, err := h.Signer.Issue(u.ID, string(u.Role))
	if err != nil {
		h.log.Error().Err(err).Str("user_id", u.ID).Msg("Token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          u,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (h *handler) login(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.Directory.Login(req.Email)
	if err != nil {
		h.Metrics.Login(false)
		if errors.Is(err, directory.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.Metrics.Login(true)
	h.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("User logged in")
	h.tokenResponse(c, u)
}

func (h *handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := h.Signer.ParseRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	u, ok := h.Directory.Lookup(claims.Subject)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	h.tokenResponse(c, u)
}

// viewer resolves the session user. It writes the error response itself.
func (h *handler) viewer(c *gin.Context) (directory.User, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return directory.User{}, false
	}
	u, ok := h.Directory.Lookup(claims.Subject)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return directory.User{}, false
	}
	return u, true
}

// scopeUserID returns the user id a request may read or write. Students
// are pinned to themselves; asking for someone else is forbidden.
func (h *handler) scopeUserID(c *gin.Context, viewer directory.User, requested string) (string, bool) {
	if viewer.Role != directory.RoleStudent {
		return requested, true
	}
	if requested != "" && requested != viewer.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "students may only access their own attendance"})
		return "", false
	}
	return viewer.ID, true
}

// filterFromQuery reads subject/start/end. Bounds must be YYYY-MM-DD.
func filterFromQuery(c *gin.Context) (attendance.Filter, bool) {
	f := attendance.Filter{
		Subject: c.Query("subject"),
		Start:   c.Query("start"),
		End:     c.Query("end"),
	}
	for _, bound := range []string{f.Start, f.End} {
		if bound == "" {
			continue
		}
		if _, err := attendance.ParseDate(bound); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start and end must be YYYY-MM-DD"})
			return attendance.Filter{}, false
		}
	}
	return f, true
}

func (h *handler) me(c *gin.Context) {
	u, ok := h.viewer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *handler) listUsers(c *gin.Context) {
	users := h.Directory.List()
	if role := directory.Role(c.Query("role")); role != "" {
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}
		users = h.Directory.WithRole(role)
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// scopedRecords applies the user scope and query filter shared by the
// read endpoints.
func (h *handler) scopedRecords(c *gin.Context) (string, []attendance.Record, bool) {
	viewer, ok := h.viewer(c)
	if !ok {
		return "", nil, false
	}
	userID, ok := h.scopeUserID(c, viewer, c.Query("user_id"))
	if !ok {
		return "", nil, false
	}
	f, ok := filterFromQuery(c)
	if !ok {
		return "", nil, false
	}
	return userID, f.Apply(h.Store.Query(userID)), true
}

func (h *handler) listAttendance(c *gin.Context) {
	_, records, ok := h.scopedRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *handler) summary(c *gin.Context) {
	_, records, ok := h.scopedRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":     attendance.Summarize(records),
		"byWeekday": attendance.ByWeekday(records),
	})
}

func (h *handler) markAttendance(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	var in attendance.UpsertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := h.scopeUserID(c, viewer, in.UserID); !ok {
		return
	}

	rec, err := h.Store.Upsert(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.publishMarked(c.Request.Context(), rec.UserID)
	h.log.Info().
		Str("marked_by", viewer.ID).
		Str("user_id", rec.UserID).
		Str("date", rec.Date).
		Str("status", string(rec.Status)).
		Msg("Attendance marked")
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// publishMarked announces a changed record. Insight refresh is best
// effort, so a full or slow queue drops the event instead of holding the
// response.
func (h *handler) publishMarked(ctx context.Context, userID string) {
	if h.Queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	msg := queue.Message{Type: queue.TypeAttendanceMarked, Body: []byte(userID)}
	if err := h.Queue.Publish(ctx, msg); err != nil {
		h.Metrics.EventDropped(msg.Type)
		h.log.Warn().Err(err).Str("user_id", userID).Msg("Dropped attendance event")
	}
}

func (h *handler) resetAttendance(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	h.Store.ResetAll(c.Request.Context())
	h.log.Warn().Str("reset_by", viewer.ID).Msg("Attendance collection reset")
	c.Status(http.StatusNoContent)
}

func (h *handler) dashboard(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		date = h.Now().UTC().Format(attendance.DateLayout)
	} else if _, err := attendance.ParseDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	scope := ""
	if viewer.Role == directory.RoleStudent {
		scope = viewer.ID
	}
	view, err := h.Dashboards.Build(dashboard.Input{
		Viewer:  viewer,
		Records: h.Store.Query(scope),
		Users:   h.Directory.List(),
		Filter:  f,
		Date:    date,
	})
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// insight ignores subject and date filters; cached text is per user.
func (h *handler) insight(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}
	userID, ok := h.scopeUserID(c, viewer, c.Query("user_id"))
	if !ok {
		return
	}
	key := userID
	if key == "" {
		key = insights.AllUsersKey
	}
	text := h.Insights.Insight(c.Request.Context(), key, h.Store.Query(userID))
	c.JSON(http.StatusOK, gin.H{"insight": text})
}
