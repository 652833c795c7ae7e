package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/SarajZimba/chatbot-llm/internal/session"
	"github.com/SarajZimba/chatbot-llm/internal/store"
)

const noDocumentContext = "No document context found for this outlet."

// ResolveRequest is one turn of a guided command conversation.
type ResolveRequest struct {
	Outlet    string
	UserID    string
	CommandID *int64
	Slots     map[string]string
	Question  string
}

// ResolveResult reports the merged slot state for the selected command and,
// when the command is ready, the generated answer.
type ResolveResult struct {
	Outlet         string            `json:"document_outlet_name"`
	CommandID      *int64            `json:"command_id"`
	Slots          map[string]string `json:"slots"`
	ReadyToCallAPI bool              `json:"ready_to_call_api"`
	IsLastCommand  bool              `json:"is_last_command"`
	Answer         *string           `json:"llama_answer,omitempty"`
}

// CommandService walks the outlet's command tree one request at a time,
// accumulating slot values in the session store until a leaf command has
// everything it needs.
type CommandService struct {
	dbStore  *store.SQLiteStore
	sessions session.Store
	rag      *RAGService
}

func NewCommandService(db *store.SQLiteStore, sessions session.Store, rag *RAGService) *CommandService {
	return &CommandService{
		dbStore:  db,
		sessions: sessions,
		rag:      rag,
	}
}

// Resolve handles one turn. Without a command id the question is answered
// over the outlet's full document context. With one, incoming slot values
// are merged into the session, readiness is computed from the command's
// required slots, and a leaf command with all slots filled triggers
// generation. Branch commands only report readiness so the client can
// descend further.
func (s *CommandService) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	if req.CommandID == nil {
		answer, err := s.answerFullContext(ctx, req.Outlet, req.Question)
		if err != nil {
			return nil, err
		}
		return &ResolveResult{
			Outlet:         req.Outlet,
			Slots:          map[string]string{},
			ReadyToCallAPI: true,
			IsLastCommand:  true,
			Answer:         &answer,
		}, nil
	}

	cmd, err := s.dbStore.CommandByID(*req.CommandID)
	if err != nil {
		return nil, err
	}

	merged, err := s.sessions.Merge(ctx, req.Outlet, req.UserID, cmd.CommandID, req.Slots)
	if err != nil {
		return nil, fmt.Errorf("failed to merge slot session: %w", err)
	}

	required, err := s.dbStore.RequiredSlots(cmd.CommandID)
	if err != nil {
		return nil, err
	}

	// Readiness is judged against the command's required slots only; extra
	// session keys left over from other turns are ignored.
	slots := make(map[string]string, len(required))
	ready := true
	for _, slot := range required {
		value := merged[slot.SlotName]
		slots[slot.SlotName] = value
		if value == "" {
			ready = false
		}
	}

	isLeaf, err := s.dbStore.IsLeaf(cmd.CommandID)
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{
		Outlet:         req.Outlet,
		CommandID:      &cmd.CommandID,
		Slots:          slots,
		ReadyToCallAPI: ready,
		IsLastCommand:  isLeaf,
	}

	if isLeaf && ready {
		question := req.Question
		if question == "" {
			question = cmd.CommandText
		}
		answer, err := s.answerFullContext(ctx, req.Outlet, question)
		if err != nil {
			return nil, err
		}
		result.Answer = &answer
	}
	return result, nil
}

// answerFullContext generates over the outlet's entire document dump. A
// missing outlet degrades to a fixed message rather than failing the turn,
// so slot progress still reaches the client.
func (s *CommandService) answerFullContext(ctx context.Context, outletName, question string) (string, error) {
	contextStr, err := s.rag.FullOutletContext(outletName)
	if errors.Is(err, store.ErrScopeNotFound) {
		return noDocumentContext, nil
	}
	if err != nil {
		return "", err
	}
	return s.rag.GenerateAnswer(ctx, contextStr, question), nil
}
