package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ask_service.go -package=mocks -mock_names=AskService=MockAskService groundchat/internal/service AskService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"groundchat/internal/citation"
	"groundchat/internal/contextutil"
	"groundchat/internal/llm"
	"groundchat/internal/metrics"
	"groundchat/internal/rag"
	"groundchat/internal/storage"
	"groundchat/internal/websearch"
)

// DefaultWebK is the number of web results requested when AskOptions.WebK is unset.
const DefaultWebK = 5

// AskRequest is one user question.
type AskRequest struct {
	Question string
	// ListMode answers about the document collection itself using the meta pool.
	ListMode bool
	// K is the kb pool size; zero uses the retriever default.
	K int
	// DocumentIDs restricts kb retrieval to these documents.
	DocumentIDs []string
	// Web adds the web pool when a searcher is configured.
	Web bool
}

// Turn is a processed assistant answer with the sources it cites.
type Turn struct {
	ID          string
	Question    string
	Answer      string
	ListMode    bool
	KBSources   []citation.EvidenceItem
	WebSources  []citation.EvidenceItem
	Diagnostics citation.Diagnostics
	CreatedAt   time.Time
}

// AskService answers questions grounded in the evidence pools.
type AskService interface {
	// Ask gathers the pools, asks the model and returns the processed turn.
	Ask(ctx context.Context, req AskRequest) (Turn, error)
	// StreamAsk is Ask with the raw model output forwarded to onDelta as it arrives.
	StreamAsk(ctx context.Context, req AskRequest, onDelta func(delta string) error) (Turn, error)
	// GetTurn loads a persisted turn.
	GetTurn(ctx context.Context, id string) (Turn, error)
}

// AskOptions tunes retrieval and generation.
type AskOptions struct {
	KBK         int
	WebK        int
	MaxTokens   int
	Temperature float32
}

// askService implements AskService.
type askService struct {
	retriever rag.Retriever
	searcher  websearch.Searcher
	documents storage.DocumentStore
	chat      llm.ChatClient
	citations CitationService
	turns     storage.TurnStore
	opts      AskOptions
}

// NewAskService creates a new AskService. searcher may be nil to disable the web pool.
func NewAskService(
	retriever rag.Retriever,
	searcher websearch.Searcher,
	documents storage.DocumentStore,
	chat llm.ChatClient,
	citations CitationService,
	turns storage.TurnStore,
	opts AskOptions,
) AskService {
	if opts.WebK <= 0 {
		opts.WebK = DefaultWebK
	}
	return &askService{
		retriever: retriever,
		searcher:  searcher,
		documents: documents,
		chat:      chat,
		citations: citations,
		turns:     turns,
		opts:      opts,
	}
}

// Ask answers one question.
func (s *askService) Ask(ctx context.Context, req AskRequest) (turn Turn, err error) {
	defer func() { metrics.RecordAsk(err) }()

	src, err := s.prepare(ctx, &req)
	if err != nil {
		return Turn{}, err
	}

	answer, err := s.chat.ChatWithMessages(ctx, rag.BuildMessages(req.Question, src), s.params())
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to get LLM response", "error", err)
		return Turn{}, fmt.Errorf("%w: llm: %w", ErrExternalService, err)
	}

	return s.finish(ctx, req, src, answer)
}

// StreamAsk answers one question while streaming the raw answer.
func (s *askService) StreamAsk(ctx context.Context, req AskRequest, onDelta func(delta string) error) (turn Turn, err error) {
	defer func() { metrics.RecordAsk(err) }()

	src, err := s.prepare(ctx, &req)
	if err != nil {
		return Turn{}, err
	}

	var answer strings.Builder
	err = s.chat.StreamChatWithMessages(ctx, rag.BuildMessages(req.Question, src), s.params(), func(delta string) error {
		answer.WriteString(delta)
		if onDelta == nil {
			return nil
		}
		return onDelta(delta)
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to stream LLM response", "error", err)
		return Turn{}, fmt.Errorf("%w: llm: %w", ErrExternalService, err)
	}

	return s.finish(ctx, req, src, answer.String())
}

// GetTurn loads a persisted turn by ID.
func (s *askService) GetTurn(ctx context.Context, id string) (Turn, error) {
	if strings.TrimSpace(id) == "" {
		return Turn{}, invalidField("id", "cannot be empty")
	}
	rec, err := s.turns.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Turn{}, fmt.Errorf("turn %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Turn{}, WrapError(err, "failed to load turn")
	}
	return turnFromRecord(rec), nil
}

func (s *askService) params() llm.ChatParams {
	return llm.ChatParams{MaxTokens: s.opts.MaxTokens, Temperature: s.opts.Temperature}
}

// prepare validates the request and gathers its evidence pools.
func (s *askService) prepare(ctx context.Context, req *AskRequest) (rag.Sources, error) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "empty question in ask request")
		return rag.Sources{}, invalidField("question", "cannot be empty")
	}
	if req.K < 0 || req.K > rag.MaxK {
		return rag.Sources{}, invalidField("k", "must be between 0 and %d", rag.MaxK)
	}
	if req.K == 0 {
		req.K = s.opts.KBK
	}
	return s.gather(ctx, *req)
}

// gather fetches the kb (or meta) pool and the optional web pool concurrently. A web
// failure leaves the web pool empty; a kb failure fails the request.
func (s *askService) gather(ctx context.Context, req AskRequest) (rag.Sources, error) {
	logger := contextutil.LoggerFromContext(ctx)
	src := rag.Sources{ListMode: req.ListMode}

	g, gctx := errgroup.WithContext(ctx)

	if req.ListMode {
		g.Go(func() error {
			start := time.Now()
			docs, err := s.documents.List(gctx)
			metrics.RecordRetrieval(citation.PoolMeta, time.Since(start), err)
			if err != nil {
				return WrapError(err, "failed to list documents")
			}
			src.Meta = make([]citation.MetaInput, len(docs))
			for i, d := range docs {
				src.Meta[i] = citation.MetaInput{Index: i + 1, Filename: d.Filename, DocumentID: d.ID}
			}
			return nil
		})
	} else {
		g.Go(func() error {
			start := time.Now()
			kb, err := s.retriever.Retrieve(gctx, req.Question, rag.ClampK(req.K), req.DocumentIDs)
			metrics.RecordRetrieval(citation.PoolKB, time.Since(start), err)
			if err != nil {
				return fmt.Errorf("%w: kb retrieval: %w", ErrExternalService, err)
			}
			src.KB = kb
			return nil
		})
	}

	if req.Web {
		if s.searcher == nil {
			logger.DebugContext(ctx, "web pool requested but no searcher configured")
		} else {
			g.Go(func() error {
				start := time.Now()
				web, err := s.searcher.Search(gctx, req.Question, s.opts.WebK)
				metrics.RecordRetrieval(citation.PoolWeb, time.Since(start), err)
				if err != nil {
					logger.WarnContext(ctx, "web search failed, continuing without web pool", "error", err)
					return nil
				}
				src.Web = web
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "failed to gather evidence pools", "error", err)
		return rag.Sources{}, err
	}

	logger.DebugContext(ctx, "evidence pools gathered",
		"kb", len(src.KB),
		"web", len(src.Web),
		"meta", len(src.Meta),
		"list_mode", src.ListMode,
	)
	return src, nil
}

// finish processes the answer's citations and persists the turn. A persistence failure
// is logged and the turn is returned without an ID.
func (s *askService) finish(ctx context.Context, req AskRequest, src rag.Sources, answer string) (Turn, error) {
	logger := contextutil.LoggerFromContext(ctx)

	res, err := s.citations.Process(ctx, citation.Input{
		Text:     answer,
		Pools:    src.Pools(),
		ListMode: req.ListMode,
	})
	if err != nil {
		return Turn{}, WrapError(err, "failed to process citations")
	}

	rec := &storage.TurnRecord{
		Question:    req.Question,
		Answer:      res.Text,
		ListMode:    req.ListMode,
		KBSources:   res.KBSources,
		WebSources:  res.WebSources,
		Diagnostics: res.Diagnostics,
	}
	if err := s.turns.Save(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "failed to persist turn", "error", err)
		rec.ID = ""
		rec.CreatedAt = time.Now().UTC()
	}

	logger.InfoContext(ctx, "question answered",
		"turn_id", rec.ID,
		"question_length", len(req.Question),
		"answer_length", len(res.Text),
		"kb_sources", len(res.KBSources),
		"web_sources", len(res.WebSources),
	)
	return turnFromRecord(rec), nil
}

func turnFromRecord(rec *storage.TurnRecord) Turn {
	return Turn{
		ID:          rec.ID,
		Question:    rec.Question,
		Answer:      rec.Answer,
		ListMode:    rec.ListMode,
		KBSources:   rec.KBSources,
		WebSources:  rec.WebSources,
		Diagnostics: rec.Diagnostics,
		CreatedAt:   rec.CreatedAt,
	}
}
