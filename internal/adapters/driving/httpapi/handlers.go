package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// IngestRequest is the body of PUT /documents/:id.
type IngestRequest struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// RetrieveRequest is the body of POST /retrieve.
type RetrieveRequest struct {
	Query      string `json:"query" binding:"required"`
	DocumentID string `json:"document_id"`
	TopK       int    `json:"top_k"`
}

// RetrieveResponse lists retrieved chunks.
type RetrieveResponse struct {
	Chunks []domain.ContextChunk `json:"chunks"`
	Count  int                   `json:"count"`
}

// AnswerRequest is the body of POST /answer.
type AnswerRequest struct {
	Query      string   `json:"query" binding:"required"`
	DocumentID string   `json:"document_id"`
	TopK       int      `json:"top_k"`
	Threshold  *float64 `json:"threshold"`
}

// AnswerResponse is the JSON form of domain.Answer.
type AnswerResponse struct {
	Answer           string                `json:"answer"`
	Context          []domain.ContextChunk `json:"context"`
	Confidence       float64               `json:"confidence"`
	ModelUsed        string                `json:"model_used"`
	ResponseTimeSecs float64               `json:"response_time_seconds"`
	Query            string                `json:"query"`
	DocumentID       string                `json:"document_id,omitempty"`
	Outcome          domain.Outcome        `json:"outcome"`
	Error            string                `json:"error,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID    string `json:"session_id"`
	DocumentID   string `json:"document_id"`
	Message      string `json:"message"`
	UseRetrieval *bool  `json:"use_retrieval"`
	TopK         int    `json:"top_k"`
}

// CountResponse reports a chunk count.
type CountResponse struct {
	DocumentID string `json:"document_id,omitempty"`
	Count      int    `json:"count"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := s.ports.RAG.Ingest(c.Request.Context(), domain.Document{
		ID:       c.Param("id"),
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := s.ports.RAG.DeleteDocument(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": id, "deleted": true})
}

func (s *Server) countDocument(c *gin.Context) {
	s.count(c, c.Param("id"))
}

func (s *Server) countAll(c *gin.Context) {
	s.count(c, "")
}

func (s *Server) count(c *gin.Context, documentID string) {
	n, err := s.ports.RAG.Count(c.Request.Context(), documentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{DocumentID: documentID, Count: n})
}

func (s *Server) retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	chunks, err := s.ports.RAG.Retrieve(c.Request.Context(), req.Query, req.DocumentID, req.TopK)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if chunks == nil {
		chunks = []domain.ContextChunk{}
	}
	c.JSON(http.StatusOK, RetrieveResponse{Chunks: chunks, Count: len(chunks)})
}

func (s *Server) answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ans, err := s.ports.RAG.Answer(c.Request.Context(), domain.AnswerRequest{
		Query:      req.Query,
		DocumentID: req.DocumentID,
		TopK:       req.TopK,
		Threshold:  req.Threshold,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := AnswerResponse{
		Answer:           ans.Answer,
		Context:          ans.Context,
		Confidence:       ans.Confidence,
		ModelUsed:        ans.ModelUsed,
		ResponseTimeSecs: ans.ResponseTime.Seconds(),
		Query:            ans.Query,
		DocumentID:       ans.DocumentID,
		Outcome:          ans.Outcome,
	}
	if ans.Err != nil {
		resp.Error = ans.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	useRetrieval := true
	if req.UseRetrieval != nil {
		useRetrieval = *req.UseRetrieval
	}

	reply, err := s.ports.RAG.Chat(c.Request.Context(), domain.ChatRequest{
		SessionID:    req.SessionID,
		DocumentID:   req.DocumentID,
		Message:      req.Message,
		UseRetrieval: useRetrieval,
		TopK:         req.TopK,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) endSession(c *gin.Context) {
	if err := s.ports.RAG.EndSession(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) runTask(c *gin.Context) {
	if s.ports.Tasks == nil {
		abortWithError(c, domain.ErrNotImplemented)
		return
	}

	var in domain.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	kind, err := domain.ParseTaskKind(string(in.Kind))
	if err != nil {
		abortWithError(c, err)
		return
	}
	in.Kind = kind

	res, err := s.ports.Tasks.Run(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) status(c *gin.Context) {
	st := s.ports.RAG.Status(c.Request.Context())
	code := http.StatusOK
	if !st.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}
