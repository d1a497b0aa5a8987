package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"spotmatch/app/internal/discovery"
	"spotmatch/app/internal/geo"
	"spotmatch/app/internal/models"
	"spotmatch/app/internal/places"
	"spotmatch/app/internal/presence"
)

// UpdateProfile lets the owner edit their attributes. Presence fields are
// managed by the tracker and ignored here.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		DisplayName string   `json:"display_name"`
		Age         int      `json:"age"`
		Gender      string   `json:"gender"`
		Bio         string   `json:"bio"`
		AvatarURL   string   `json:"avatar_url"`
		Interests   []string `json:"interests"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.Store.GetProfile(viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	profile.DisplayName = req.DisplayName
	profile.Age = req.Age
	profile.Gender = req.Gender
	profile.Bio = req.Bio
	profile.AvatarURL = req.AvatarURL
	profile.Interests = pq.StringArray(req.Interests)

	if err := h.Store.SaveProfile(profile); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetProfile returns any profile by id (candidate detail view).
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.Store.GetProfile(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SetPermission records the device's geolocation decision. Granting starts
// the tracker; a denial leaves the user browsable without a position.
func (h *Handler) SetPermission(c *gin.Context) {
	var req struct {
		State string `json:"state" binding:"required,oneof=prompt granted denied"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.sessions.get(viewerID(c))
	session.Locator.SetPermission(presence.Permission(req.State))
	if presence.Permission(req.State) == presence.PermissionGranted {
		session.StartTracking()
	}
	c.JSON(http.StatusOK, gin.H{"permission": req.State})
}

// ReportFix feeds a device position into the tracker.
func (h *Handler) ReportFix(c *gin.Context) {
	var req struct {
		Lat float64 `json:"lat" binding:"required"`
		Lng float64 `json:"lng" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.sessions.get(viewerID(c))
	session.Locator.Push(geo.Point{Lat: req.Lat, Lng: req.Lng})
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// Background marks the app backgrounded without tearing the session down.
func (h *Handler) Background(c *gin.Context) {
	h.sessions.get(viewerID(c)).Tracker.Background()
	c.JSON(http.StatusOK, gin.H{"status": "background"})
}

// EndSession tears the live session down, writing the offline presence
// update on the way out.
func (h *Handler) EndSession(c *gin.Context) {
	h.sessions.drop(viewerID(c))
	c.JSON(http.StatusOK, gin.H{"status": "offline"})
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// Candidates serves both discovery variants. variant=map requires a viewer
// position (tracker fix or lat/lng query) and filters by radius; the
// default list variant keeps locationless profiles.
func (h *Handler) Candidates(c *gin.Context) {
	session := h.sessions.get(viewerID(c))

	filters := discovery.Filters{
		MinAge:     intQuery(c, "min_age", 18),
		MaxAge:     intQuery(c, "max_age", 99),
		Gender:     c.DefaultQuery("gender", discovery.GenderAll),
		OnlineOnly: c.Query("online_only") == "true",
	}

	if c.Query("variant") == "map" {
		viewer, ok := session.Tracker.CurrentLocation()
		if !ok {
			lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
			lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
			if errLat != nil || errLng != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Viewer position required for map view"})
				return
			}
			viewer = geo.Point{Lat: lat, Lng: lng}
		}
		candidates, err := session.Discovery.Nearby(viewer, filters)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"candidates": candidates, "viewer": viewer})
		return
	}

	candidates, err := session.Discovery.Browse(filters)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

// SendRequest creates a connection request toward another profile.
func (h *Handler) SendRequest(c *gin.Context) {
	var req struct {
		TargetID string `json:"target_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.sessions.get(viewerID(c)).Ledger.Send(req.TargetID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// AcceptRequest resolves a pending request and returns the opened
// conversation.
func (h *Handler) AcceptRequest(c *gin.Context) {
	conv, err := h.sessions.get(viewerID(c)).Ledger.Accept(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// RejectRequest resolves a pending request without opening anything.
func (h *Handler) RejectRequest(c *gin.Context) {
	if err := h.sessions.get(viewerID(c)).Ledger.Reject(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.RequestRejected})
}

// ReceivedRequests lists incoming requests, pending first.
func (h *Handler) ReceivedRequests(c *gin.Context) {
	received, err := h.sessions.get(viewerID(c)).Ledger.Received()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": received})
}

// PendingCount serves the badge number.
func (h *Handler) PendingCount(c *gin.Context) {
	count, err := h.sessions.get(viewerID(c)).Ledger.PendingCount()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// Conversations returns the viewer's thread list, newest activity first.
func (h *Handler) Conversations(c *gin.Context) {
	session := h.sessions.get(viewerID(c))
	if err := session.Conversations.Refresh(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": session.Conversations.Entries()})
}

// OpenConversation opens (or returns) the thread with another user and
// selects it.
func (h *Handler) OpenConversation(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.sessions.get(viewerID(c))
	conv, err := session.Conversations.OpenWithUser(req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	session.Conversations.Select(conv.ID)
	c.JSON(http.StatusOK, conv)
}

// SelectConversation points the session at a thread.
func (h *Handler) SelectConversation(c *gin.Context) {
	session := h.sessions.get(viewerID(c))
	convID := c.Param("id")
	if _, ok := session.Conversations.Entry(convID); !ok {
		if err := session.Conversations.Refresh(); err != nil {
			h.respondError(c, err)
			return
		}
	}
	entry, ok := session.Conversations.Entry(convID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	session.Conversations.Select(convID)
	c.JSON(http.StatusOK, entry)
}

// CurrentConversation returns the selected thread, if any.
func (h *Handler) CurrentConversation(c *gin.Context) {
	entry, ok := h.sessions.get(viewerID(c)).Conversations.Current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No conversation selected"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// SendMessage appends a text message to a thread.
func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.sessions.get(viewerID(c)).Conversations.SendMessage(c.Param("id"), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkRead clears the unread counter for the viewer in a thread.
func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.sessions.get(viewerID(c)).Conversations.MarkRead(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// DeclareMatch sets the viewer's side of the mutual-match flag. The flag is
// one way; the response says whether both sides have now matched.
func (h *Handler) DeclareMatch(c *gin.Context) {
	session := h.sessions.get(viewerID(c))
	convID := c.Param("id")
	if err := session.Conversations.SetMatched(convID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"both_matched": session.Conversations.BothMatched(convID)})
}

// Places reports the venue deck for a matched conversation. The first call
// loads the deck; later calls only pick up a meeting place the counterpart
// committed, so polling never resets the cursor.
func (h *Handler) Places(c *gin.Context) {
	session := h.sessions.get(viewerID(c))
	convID := c.Param("id")
	engine := session.Engine(convID, h.Store, h.Venues)

	if engine.State() != places.StateLoading {
		if err := engine.Refresh(); err != nil {
			h.respondError(c, err)
			return
		}
		placesState(c, engine)
		return
	}

	origin, ok := session.Tracker.CurrentLocation()
	if !ok {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Viewer position required for place suggestions"})
			return
		}
		origin = geo.Point{Lat: lat, Lng: lng}
	}

	if err := engine.Load(convID, origin, c.DefaultQuery("category", "restaurant")); err != nil {
		h.respondError(c, err)
		return
	}
	placesState(c, engine)
}

// SwipePlace records the viewer's verdict on the current venue and
// advances the deck.
func (h *Handler) SwipePlace(c *gin.Context) {
	var req struct {
		Liked *bool `json:"liked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.sessions.get(viewerID(c))
	engine := session.Engine(c.Param("id"), h.Store, h.Venues)
	if _, err := engine.Swipe(*req.Liked); err != nil {
		h.respondError(c, err)
		return
	}
	placesState(c, engine)
}

func placesState(c *gin.Context, engine *places.Engine) {
	resp := gin.H{"state": engine.State(), "remaining": engine.Remaining()}
	if venue, ok := engine.Current(); ok {
		resp["current"] = venue
	}
	if venue, ok := engine.MatchedVenue(); ok {
		resp["matched"] = venue
	}
	c.JSON(http.StatusOK, resp)
}

// ReportUser files a report against another profile. The response is a
// notice either way; whether the report tipped a suspension stays private.
func (h *Handler) ReportUser(c *gin.Context) {
	var req struct {
		ReportedID     string `json:"reported_id" binding:"required"`
		ConversationID string `json:"conversation_id"`
		Category       string `json:"category" binding:"required"`
		Details        string `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := &models.Report{
		ReporterID:     viewerID(c),
		ReportedID:     req.ReportedID,
		ConversationID: req.ConversationID,
		Category:       req.Category,
		Details:        req.Details,
	}
	if err := h.Moderation.File(report); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notice": h.Locale.GetString(lang(c), "notice.report_received")})
}

// AskAssistant proxies a prompt to the conversation assistant. The reply
// degrades to a canned apology instead of failing.
func (h *Handler) AskAssistant(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": h.Assistant.Reply(req.Prompt)})
}
