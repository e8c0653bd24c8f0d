package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/Big-First/NinfaBot-sub000/IO"
	"github.com/Big-First/NinfaBot-sub000/training"
)

// Model is what the server needs from the predictor.
type Model interface {
	training.Learner
	MaxSeqLen() int
}

// maxTokensCap bounds max_tokens from a request.
const maxTokensCap = 256

type GenerateRequest struct {
	Text      string `json:"text,omitempty"`
	IDs       []int  `json:"ids,omitempty"` // used as the prompt verbatim when set
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
	IDs  []int  `json:"ids"`
}

type TrainRequest struct {
	Text  string `json:"text"`
	Reply string `json:"reply,omitempty"` // when set, Text/Reply train as one dialog turn
}

type TrainResponse struct {
	Pairs int `json:"pairs"`
}

// Server exposes a model over HTTP. The model is not safe for concurrent
// use, so every Predict and Train goes through mu.
type Server struct {
	tok       IO.Tokenizer
	maxTokens int
	log       logr.Logger

	mu    sync.Mutex
	model Model
	gen   Generator
}

func NewServer(m Model, tok IO.Tokenizer, maxTokens int, log logr.Logger) *Server {
	s := &Server{
		tok:       tok,
		maxTokens: maxTokens,
		log:       log,
		model:     m,
	}
	eos, ok := tok.TokenID(IO.EOSToken)
	if !ok {
		eos = -1
	}
	s.gen = Generator{Model: lockedPredictor{s}, MaxSeqLen: m.MaxSeqLen(), EOS: eos}
	return s
}

type lockedPredictor struct{ s *Server }

func (p lockedPredictor) Predict(ids []int) []float64 {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.model.Predict(ids)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /train", s.handleTrain)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	prompt := req.IDs
	if len(prompt) == 0 {
		if req.Text == "" {
			http.Error(w, "text or ids required", http.StatusBadRequest)
			return
		}
		var err error
		prompt, err = training.EncodeSentence(s.tok, req.Text)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}
	maxTokens = min(maxTokens, maxTokensCap)

	ids, err := s.gen.Generate(r.Context(), prompt, maxTokens)
	if err != nil {
		s.log.V(1).Info("generation interrupted", "err", err.Error(), "generated", len(ids))
		http.Error(w, "generation interrupted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	resp := GenerateResponse{Text: s.tok.Decode(ids), IDs: ids}
	s.log.V(2).Info("generated", "prompt", len(prompt), "tokens", len(ids))
	writeJSON(w, resp)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	var (
		ids []int
		err error
	)
	if req.Reply != "" {
		ids, err = training.EncodeTurn(s.tok, req.Text, req.Reply)
	} else {
		ids, err = training.EncodeSentence(s.tok, req.Text)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pairs := training.Pairs(ids, s.model.MaxSeqLen())

	s.mu.Lock()
	for _, p := range pairs {
		s.model.Train(p.Prefix, p.Next)
	}
	s.mu.Unlock()

	s.log.V(2).Info("trained online", "pairs", len(pairs))
	writeJSON(w, TrainResponse{Pairs: len(pairs)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("chat server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
