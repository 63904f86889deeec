package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"recipeassistant"
	"recipeassistant/assistant"
	"recipeassistant/health"
	"recipeassistant/orchestrator"
	"recipeassistant/store"
	"recipeassistant/stream"
	"recipeassistant/tools"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) createSession(c *gin.Context) {
	id, err := s.store.CreateSession(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}

func (s *Server) history(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	msgs, err := s.store.LoadHistory(c.Request.Context(), sessionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []recipeassistant.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// chatBody mirrors assistant.ChatRequest but lets use_graph default to true.
type chatBody struct {
	SessionID string                      `json:"session_id"`
	Message   string                      `json:"message"`
	UseGraph  *bool                       `json:"use_graph"`
	Context   recipeassistant.UserContext `json:"context"`
}

func (b chatBody) request() assistant.ChatRequest {
	useGraph := true
	if b.UseGraph != nil {
		useGraph = *b.UseGraph
	}
	return assistant.ChatRequest{
		SessionID: b.SessionID,
		Message:   b.Message,
		UseGraph:  useGraph,
		Context:   b.Context,
	}
}

func validateChat(req assistant.ChatRequest) string {
	switch {
	case req.SessionID == "":
		return "session_id is required"
	case strings.TrimSpace(req.Message) == "":
		return "message is required"
	}
	return ""
}

func (s *Server) chat(c *gin.Context) {
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	req := body.request()
	if msg := validateChat(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	resp, err := s.svc.Chat(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// chatStream answers with Server-Sent Events. GET takes session_id, message,
// use_graph and a JSON context in the query string; POST takes the chat body.
func (s *Server) chatStream(c *gin.Context) {
	req, ok := s.streamRequest(c)
	if !ok {
		return
	}

	resp, err := s.svc.Chat(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	emit := func(event, data string) error {
		c.SSEvent(event, data)
		c.Writer.Flush()
		return nil
	}
	if err := stream.Deliver(c.Request.Context(), resp.Reply, s.opts.ChunkSize, emit); err != nil {
		slog.Warn("SERVER: Stream ended early", "session_id", req.SessionID, "error", err)
	}
}

func (s *Server) streamRequest(c *gin.Context) (assistant.ChatRequest, bool) {
	var body chatBody
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return assistant.ChatRequest{}, false
		}
	} else {
		body.SessionID = c.Query("session_id")
		body.Message = c.Query("message")
		if v, err := strconv.ParseBool(c.DefaultQuery("use_graph", "true")); err == nil {
			body.UseGraph = &v
		}
		// A malformed context is ignored rather than rejected.
		if raw := c.Query("context"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &body.Context); err != nil {
				body.Context = recipeassistant.UserContext{}
			}
		}
	}

	req := body.request()
	if msg := validateChat(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing session_id or message"})
		return assistant.ChatRequest{}, false
	}
	return req, true
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.store.GetProfile(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) saveProfile(c *gin.Context) {
	var p recipeassistant.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if err := s.store.SaveProfile(c.Request.Context(), p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) searchRecipes(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	ingredients := strings.TrimSpace(c.Query("ingredients"))
	if q == "" && ingredients == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide q or ingredients"})
		return
	}
	parts := []string{}
	if q != "" {
		parts = append(parts, q)
	}
	if diet := strings.TrimSpace(c.Query("diet")); diet != "" {
		parts = append(parts, "diet:"+diet)
	}
	if ingredients != "" {
		parts = append(parts, "ingredients:"+ingredients)
	}

	maxResults := orchestrator.DefaultMaxResults
	if v, err := strconv.Atoi(c.Query("max")); err == nil && v > 0 {
		maxResults = v
	}

	res, err := s.svc.Search(c.Request.Context(), strings.Join(parts, " "), maxResults)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type analyzeBody struct {
	Recipe    *recipeassistant.RecipeRecord `json:"recipe"`
	Consensus bool                          `json:"consensus"`
}

func (s *Server) analyzeRecipe(c *gin.Context) {
	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Recipe == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipe is required"})
		return
	}
	a, err := s.svc.AnalyzeRecipe(c.Request.Context(), *body.Recipe, body.Consensus)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type nutritionBody struct {
	Ingredients []string `json:"ingredients"`
	Consensus   bool     `json:"consensus"`
}

func (s *Server) nutrition(c *gin.Context) {
	var body nutritionBody
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Ingredients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ingredients are required"})
		return
	}
	res, err := s.svc.Nutrition(c.Request.Context(), body.Ingredients, body.Consensus)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listTools(c *gin.Context) {
	out := []gin.H{}
	for _, t := range s.tools.GetTools() {
		out = append(out, gin.H{
			"name":          t.Name(),
			"title":         t.Title(),
			"description":   t.Description(),
			"input_schema":  t.InputSchema(),
			"output_schema": t.OutputSchema(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (s *Server) runTool(c *gin.Context) {
	tool, err := s.tools.GetTool(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}

	input := map[string]any{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	out, err := tool.Run(c.Request.Context(), input)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": tool.Name(), "output": out})
}

func (s *Server) providerStatus(c *gin.Context) {
	excluded := s.opts.Excluded
	if excluded == nil {
		excluded = map[string]string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"providers": s.svc.Status(),
		"excluded":  excluded,
	})
}

func (s *Server) resetProvider(c *gin.Context) {
	capability, name := c.Param("capability"), c.Param("name")
	if err := s.svc.Reset(capability, name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "capability": capability, "provider": name})
}

// fail maps a service error to a status code and writes it as JSON.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("SERVER: Request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, tools.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, tools.ErrToolNotFound),
		errors.Is(err, orchestrator.ErrUnknownCapability),
		errors.Is(err, health.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, recipeassistant.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, recipeassistant.ErrStorageUnavailable),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
