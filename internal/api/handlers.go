package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/secrets"
	"github.com/zulandar/signalbox/internal/store"
)

// handlers carries the collaborators each route needs.
type handlers struct {
	store  *store.Store
	engine Engine
	tester Tester
	cipher secrets.Cipher
}

// pagination reads skip/limit query parameters.
func pagination(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return skip, limit
}

// --- trackers ---

func (h *handlers) listTrackers(c *gin.Context) {
	skip, limit := pagination(c)
	statuses, total, err := h.store.ListStatuses(skip, limit, c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": statuses, "total": total, "skip": skip, "limit": limit})
}

func (h *handlers) getTracker(c *gin.Context) {
	name := c.Param("name")
	status, err := h.store.GetStatus(name)
	if err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handlers) getTrackerConfig(c *gin.Context) {
	tracker, err := h.store.GetTracker(c.Param("name"))
	if err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trackerResponse(tracker))
}

// trackerRequest is the CRUD wire shape for a tracker config.
type trackerRequest struct {
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Repo            string           `json:"repo"`
	Instance        string           `json:"instance"`
	Project         string           `json:"project"`
	Chart           string           `json:"chart"`
	CredentialName  string           `json:"credential_name"`
	Channels        []models.Channel `json:"channels"`
	Interval        int              `json:"interval"`
	Schedule        string           `json:"schedule"`
	RepublishOnBody *bool            `json:"republish_on_body"`
	Enabled         *bool            `json:"enabled"`
	Description     string           `json:"description"`
}

func (r trackerRequest) validate() string {
	if r.Name == "" {
		return "name is required"
	}
	switch r.Type {
	case models.TrackerGitHub:
		if r.Repo == "" {
			return "repo is required for github trackers"
		}
	case models.TrackerGitLab:
		if r.Project == "" {
			return "project is required for gitlab trackers"
		}
	case models.TrackerHelm:
		if r.Repo == "" || r.Chart == "" {
			return "repo and chart are required for helm trackers"
		}
	default:
		return "type must be github, gitlab or helm"
	}
	return ""
}

func (r trackerRequest) toModel() (models.Tracker, error) {
	channels, err := models.MarshalChannels(r.Channels)
	if err != nil {
		return models.Tracker{}, err
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 360
	}
	republishOnBody := true
	if r.RepublishOnBody != nil {
		republishOnBody = *r.RepublishOnBody
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return models.Tracker{
		Name:            r.Name,
		Type:            r.Type,
		Repo:            r.Repo,
		Instance:        r.Instance,
		Project:         r.Project,
		Chart:           r.Chart,
		CredentialName:  r.CredentialName,
		Channels:        channels,
		Interval:        interval,
		Schedule:        r.Schedule,
		RepublishOnBody: republishOnBody,
		Enabled:         enabled,
		Description:     r.Description,
	}, nil
}

// trackerResponse decodes the channels column for API consumers.
func trackerResponse(t models.Tracker) gin.H {
	channels, err := models.ParseChannels(t.Channels)
	if err != nil {
		channels = nil
	}
	return gin.H{
		"name":              t.Name,
		"type":              t.Type,
		"repo":              t.Repo,
		"instance":          t.Instance,
		"project":           t.Project,
		"chart":             t.Chart,
		"credential_name":   t.CredentialName,
		"channels":          channels,
		"interval":          t.Interval,
		"schedule":          t.Schedule,
		"republish_on_body": t.RepublishOnBody,
		"enabled":           t.Enabled,
		"description":       t.Description,
		"created_at":        t.CreatedAt,
		"updated_at":        t.UpdatedAt,
	}
}

func (h *handlers) createTracker(c *gin.Context) {
	var req trackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if _, err := h.store.GetTracker(req.Name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "tracker already exists"})
		return
	}

	tracker, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SaveTracker(&tracker); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.engine.Refresh(tracker.Name); err != nil {
		log.Printf("api: refresh %s: %v", tracker.Name, err)
	}
	c.JSON(http.StatusCreated, trackerResponse(tracker))
}

func (h *handlers) updateTracker(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.store.GetTracker(name); err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req trackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = name
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	tracker, err := req.toModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SaveTracker(&tracker); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tracker.Enabled {
		if err := h.engine.Refresh(name); err != nil {
			log.Printf("api: refresh %s: %v", name, err)
		}
	} else {
		h.engine.Remove(name)
	}
	c.JSON(http.StatusOK, trackerResponse(tracker))
}

func (h *handlers) deleteTracker(c *gin.Context) {
	name := c.Param("name")
	if err := h.store.DeleteTracker(name); err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.engine.Remove(name)
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

// checkTracker triggers a manual check and returns the resulting status.
// A check failure is a 200 with the error inside the status row; only an
// unknown tracker is a 404.
func (h *handlers) checkTracker(c *gin.Context) {
	name := c.Param("name")
	status, err := h.engine.CheckNow(c.Request.Context(), name)
	if err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// --- releases ---

func (h *handlers) listReleases(c *gin.Context) {
	skip, limit := pagination(c)
	filter := store.ReleaseFilter{
		Tracker:        c.Query("tracker"),
		Search:         c.Query("search"),
		IncludeHistory: c.DefaultQuery("include_history", "true") == "true",
		Skip:           skip,
		Limit:          limit,
	}
	if raw := c.Query("prerelease"); raw != "" {
		v := raw == "true"
		filter.Prerelease = &v
	}

	releases, total, err := h.store.ListReleases(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": releases, "total": total, "skip": skip, "limit": limit})
}

func (h *handlers) latestReleases(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	releases, err := h.store.LatestReleases(n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, releases)
}

func (h *handlers) stats(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// --- notifiers ---

// notifierRequest is the CRUD wire shape for a notifier.
type notifierRequest struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	URL     string   `json:"url"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

func (r notifierRequest) validate() string {
	if r.Name == "" {
		return "name is required"
	}
	switch r.Type {
	case models.NotifierWebhook, models.NotifierSlack, models.NotifierDiscord:
	default:
		return "type must be webhook, slack or discord"
	}
	if r.URL == "" {
		return "url is required"
	}
	return ""
}

func notifierResponse(n models.Notifier) gin.H {
	events, err := models.ParseEvents(n.Events)
	if err != nil {
		events = nil
	}
	return gin.H{
		"name":    n.Name,
		"type":    n.Type,
		"url":     n.URL,
		"events":  events,
		"enabled": n.Enabled,
	}
}

func (h *handlers) listNotifiers(c *gin.Context) {
	notifiers, err := h.store.ListNotifiers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, 0, len(notifiers))
	for _, n := range notifiers {
		items = append(items, notifierResponse(n))
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) createNotifier(c *gin.Context) {
	var req notifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if _, err := h.store.GetNotifier(req.Name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "notifier already exists"})
		return
	}

	events := req.Events
	if len(events) == 0 {
		events = []string{"new_release"}
	}
	raw, err := models.MarshalEvents(events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	notifier := models.Notifier{Name: req.Name, Type: req.Type, URL: req.URL, Events: raw, Enabled: enabled}
	if err := h.store.SaveNotifier(&notifier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, notifierResponse(notifier))
}

func (h *handlers) updateNotifier(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.store.GetNotifier(name); err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notifier not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req notifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = name
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	raw, err := models.MarshalEvents(req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	notifier := models.Notifier{Name: name, Type: req.Type, URL: req.URL, Events: raw, Enabled: enabled}
	if err := h.store.SaveNotifier(&notifier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notifierResponse(notifier))
}

func (h *handlers) deleteNotifier(c *gin.Context) {
	name := c.Param("name")
	if err := h.store.DeleteNotifier(name); err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notifier not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

// testNotifier fires a single synchronous test send. Failure is a 400 with
// the reason so operators can fix the URL without digging in logs.
func (h *handlers) testNotifier(c *gin.Context) {
	if h.tester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "test delivery is not available"})
		return
	}
	notifier, err := h.store.GetNotifier(c.Param("name"))
	if err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notifier not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.tester.Test(c.Request.Context(), notifier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": notifier.Name})
}

// --- credentials ---

// credentialRequest is the CRUD wire shape for a credential. The token is
// accepted on write and never echoed back.
type credentialRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Token       string `json:"token"`
	Description string `json:"description"`
}

func credentialResponse(cred models.Credential, token string) gin.H {
	return gin.H{
		"name":        cred.Name,
		"type":        cred.Type,
		"token":       secrets.Mask(token),
		"description": cred.Description,
		"created_at":  cred.CreatedAt,
		"updated_at":  cred.UpdatedAt,
	}
}

func (h *handlers) listCredentials(c *gin.Context) {
	creds, err := h.store.ListCredentials()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		token, err := h.cipher.Decrypt(cred.Token)
		if err != nil {
			token = ""
		}
		items = append(items, credentialResponse(cred, token))
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) createCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and token are required"})
		return
	}
	if _, err := h.store.GetCredential(req.Name); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "credential already exists"})
		return
	}

	blob, err := h.cipher.Encrypt(req.Token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	cred := models.Credential{Name: req.Name, Type: req.Type, Token: blob, Description: req.Description}
	if err := h.store.SaveCredential(&cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, credentialResponse(cred, req.Token))
}

func (h *handlers) updateCredential(c *gin.Context) {
	name := c.Param("name")
	existing, err := h.store.GetCredential(name)
	if err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := req.Token
	blob := existing.Token
	if token != "" {
		if blob, err = h.cipher.Encrypt(token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	} else if token, err = h.cipher.Decrypt(existing.Token); err != nil {
		token = ""
	}
	credType := req.Type
	if credType == "" {
		credType = existing.Type
	}

	cred := models.Credential{Name: name, Type: credType, Token: blob, Description: req.Description}
	if err := h.store.SaveCredential(&cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, credentialResponse(cred, token))
}

func (h *handlers) deleteCredential(c *gin.Context) {
	name := c.Param("name")
	if err := h.store.DeleteCredential(name); err != nil {
		if h.store.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}
