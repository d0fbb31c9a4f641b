package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	DocumentID string         `json:"document_id" jsonschema:"identifier of the book or document"`
	Title      string         `json:"title,omitempty" jsonschema:"human readable title"`
	Content    string         `json:"content,omitempty" jsonschema:"full text to index"`
	Path       string         `json:"path,omitempty" jsonschema:"local file to extract and index instead of content"`
	Metadata   map[string]any `json:"metadata,omitempty" jsonschema:"key-value pairs copied onto every chunk"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Indexed    int    `json:"indexed"`
	Skipped    int    `json:"skipped"`
	Outcome    string `json:"outcome"`
}

// RetrieveInput is the input schema for the retrieve_context tool.
type RetrieveInput struct {
	Query      string `json:"query" jsonschema:"the question or search text"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"restrict retrieval to one document"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"number of chunks to return (default from config)"`
}

// RetrieveOutput is the output schema for the retrieve_context tool.
type RetrieveOutput struct {
	Chunks []domain.ContextChunk `json:"chunks"`
	Count  int                   `json:"count"`
}

// AnswerInput is the input schema for the answer_question tool.
type AnswerInput struct {
	Query      string   `json:"query" jsonschema:"the question to answer"`
	DocumentID string   `json:"document_id,omitempty" jsonschema:"restrict context to one document"`
	TopK       int      `json:"top_k,omitempty" jsonschema:"number of context chunks"`
	Threshold  *float64 `json:"threshold,omitempty" jsonschema:"minimum similarity for context chunks"`
}

// AnswerOutput is the output schema for the answer_question tool.
type AnswerOutput struct {
	Answer           string                `json:"answer"`
	Confidence       float64               `json:"confidence"`
	ModelUsed        string                `json:"model_used"`
	Outcome          string                `json:"outcome"`
	ResponseTimeSecs float64               `json:"response_time_seconds"`
	Context          []domain.ContextChunk `json:"context"`
	Error            string                `json:"error,omitempty"`
}

// DocumentInput names a document.
type DocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"identifier of the document"`
}

// DeleteOutput is the output schema for the delete_document tool.
type DeleteOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// CountInput is the input schema for the count_vectors tool.
type CountInput struct {
	DocumentID string `json:"document_id,omitempty" jsonschema:"count one document; empty counts all"`
}

// CountOutput is the output schema for the count_vectors tool.
type CountOutput struct {
	DocumentID string `json:"document_id,omitempty"`
	Count      int    `json:"count"`
}

// TaskInput is the input schema for the run_task tool.
type TaskInput struct {
	Kind       string `json:"kind" jsonschema:"one of summary, author_research, recommendation, question"`
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	Content    string `json:"content,omitempty"`
	Query      string `json:"query,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Chunk, embed and index a document, replacing any previous version",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Return the chunks most similar to a query",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "answer_question",
		Description: "Answer a question grounded in indexed book content",
	}, s.handleAnswer)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove every indexed chunk of a document",
	}, s.handleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "count_vectors",
		Description: "Count indexed chunks for a document or the whole collection",
	}, s.handleCount)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_task",
		Description: "Run a book analysis task: summary, author_research, recommendation or question",
	}, s.handleTask)
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	var (
		res domain.IngestResult
		err error
	)

	if input.Path != "" {
		if s.ports.Documents == nil {
			return nil, IngestOutput{}, ErrDocumentsUnavailable
		}
		data, readErr := os.ReadFile(input.Path)
		if readErr != nil {
			return nil, IngestOutput{}, fmt.Errorf("reading %s: %w", input.Path, readErr)
		}
		metadata := input.Metadata
		if input.Title != "" {
			if metadata == nil {
				metadata = map[string]any{}
			}
			metadata["title"] = input.Title
		}
		res, err = s.ports.Documents.IngestRaw(ctx, documentID(input), &domain.RawDocument{
			URI:      input.Path,
			Content:  data,
			Metadata: metadata,
		})
	} else {
		res, err = s.ports.RAG.Ingest(ctx, domain.Document{
			ID:       input.DocumentID,
			Title:    input.Title,
			Content:  input.Content,
			Metadata: input.Metadata,
		})
	}
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{
		DocumentID: res.DocumentID,
		Chunks:     res.Chunks,
		Indexed:    res.Indexed,
		Skipped:    res.Skipped,
		Outcome:    string(res.Outcome),
	}, nil
}

// documentID defaults to the file name when no id is given.
func documentID(input IngestInput) string {
	if strings.TrimSpace(input.DocumentID) != "" {
		return input.DocumentID
	}
	return filepath.Base(input.Path)
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	chunks, err := s.ports.RAG.Retrieve(ctx, input.Query, input.DocumentID, input.TopK)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}
	if chunks == nil {
		chunks = []domain.ContextChunk{}
	}
	return nil, RetrieveOutput{Chunks: chunks, Count: len(chunks)}, nil
}

func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	ans, err := s.ports.RAG.Answer(ctx, domain.AnswerRequest{
		Query:      input.Query,
		DocumentID: input.DocumentID,
		TopK:       input.TopK,
		Threshold:  input.Threshold,
	})
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	out := AnswerOutput{
		Answer:           ans.Answer,
		Confidence:       ans.Confidence,
		ModelUsed:        ans.ModelUsed,
		Outcome:          string(ans.Outcome),
		ResponseTimeSecs: ans.ResponseTime.Seconds(),
		Context:          ans.Context,
	}
	if ans.Err != nil {
		out.Error = ans.Err.Error()
	}
	return nil, out, nil
}

func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.ports.RAG.DeleteDocument(ctx, input.DocumentID); err != nil {
		return nil, DeleteOutput{}, err
	}
	return nil, DeleteOutput{DocumentID: input.DocumentID, Deleted: true}, nil
}

func (s *Server) handleCount(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CountInput,
) (*mcp.CallToolResult, CountOutput, error) {
	n, err := s.ports.RAG.Count(ctx, input.DocumentID)
	if err != nil {
		return nil, CountOutput{}, err
	}
	return nil, CountOutput{DocumentID: input.DocumentID, Count: n}, nil
}

func (s *Server) handleTask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TaskInput,
) (*mcp.CallToolResult, domain.TaskResult, error) {
	if s.ports.Tasks == nil {
		return nil, domain.TaskResult{}, ErrTasksUnavailable
	}
	kind, err := domain.ParseTaskKind(input.Kind)
	if err != nil {
		return nil, domain.TaskResult{}, err
	}
	res, err := s.ports.Tasks.Run(ctx, domain.TaskInput{
		Kind:       kind,
		DocumentID: input.DocumentID,
		Title:      input.Title,
		Author:     input.Author,
		Content:    input.Content,
		Query:      input.Query,
	})
	if err != nil {
		return nil, domain.TaskResult{}, err
	}
	return nil, res, nil
}
