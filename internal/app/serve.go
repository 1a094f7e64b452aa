package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"deskbuddy/internal/buddy"
	"deskbuddy/internal/cli/scheme/colours"
	"deskbuddy/internal/domain/history"
	"deskbuddy/internal/llm"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// askHandler answers POST /ask with one model turn. Requests are handled one
// at a time so the shared session stays in order.
type askHandler struct {
	mu    sync.Mutex
	buddy *buddy.Buddy
}

func (h *askHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, askResponse{Error: "Use POST"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logrus.WithError(err).Debug("Unreadable ask request")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, askResponse{Error: "No question provided"})
		return
	}

	h.mu.Lock()
	answer, err := h.buddy.Answer(r.Context(), question)
	h.mu.Unlock()
	if err != nil {
		logrus.WithError(err).Error("Failed to answer question")
		writeJSON(w, http.StatusBadGateway, askResponse{Error: err.Error()})
		return
	}

	logrus.WithField("chars", len(answer)).Info("Answered question")
	writeJSON(w, http.StatusOK, askResponse{Response: answer})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Debug("Failed to write response")
	}
}

// newAPI builds the /ask mux from config.
func (d *DeskBuddy) newAPI() (http.Handler, error) {
	model, err := llm.New(d.Config.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	hist, err := history.Open(d.Config.HistoryFile)
	if err != nil {
		return nil, err
	}

	b := buddy.New(buddy.Options{
		Model:          model,
		History:        hist,
		SystemPrompt:   d.Config.SystemPrompt,
		HistoryContext: d.Config.HistoryContext,
		Out:            io.Discard,
	})

	mux := http.NewServeMux()
	mux.Handle("/ask", &askHandler{buddy: b})
	return mux, nil
}

// Serve answers questions over HTTP without speech.
func (d *DeskBuddy) Serve(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("listen")
	if addr == "" {
		addr = d.Config.APIListen
	}

	handler, err := d.newAPI()
	if err != nil {
		return err
	}

	server := &http.Server{Addr: addr, Handler: handler}
	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()

	colours.Info.Fprintf(d.Out, "🌐 Answering POST /ask on %s\n", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	case <-d.ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
