package ports

import (
	"context"
	"iter"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

// StewardService is the inbound contract of the chat orchestrator.
type StewardService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
	GetConversation(id string) (*domain.Conversation, error)
	ClearConversation(id string) bool
}

// CompletionStreamer serves a single streamed completion without tool use.
type CompletionStreamer interface {
	StreamComplete(ctx context.Context, req domain.CompletionRequest) iter.Seq2[domain.StreamChunk, error]
}

// ActionReviewer is the inbound contract for human review of logged actions.
type ActionReviewer interface {
	ListActions(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionLogEntry, error)
	RecordDecision(ctx context.Context, id string, decision domain.HumanDecision, modifiedContent, decidedBy string) (*domain.ActionLogEntry, error)
}
