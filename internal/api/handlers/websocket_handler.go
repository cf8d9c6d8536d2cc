package handlers

import (
	"context"
	"strings"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/middleware/validation"
	"github.com/dataset-eval/backend/pkg/logger"
)

type WebSocketHandler struct {
	runner *Runner
}

func NewWebSocketHandler(runner *Runner) *WebSocketHandler {
	return &WebSocketHandler{
		runner: runner,
	}
}

type wsRequest struct {
	Type    string    `json:"type"`
	CSV     string    `json:"csv"`
	Source  string    `json:"source"`
	Options wsOptions `json:"options"`
}

type wsOptions struct {
	QualityThreshold    *float64 `json:"quality_threshold"`
	ComplianceThreshold *float64 `json:"compliance_threshold"`
	Relevance           *bool    `json:"relevance"`
	PII                 *bool    `json:"pii"`
	Bias                *bool    `json:"bias"`
}

// params overlays the request options on the server defaults. Threshold
// ranges are checked by the evaluator.
func (o wsOptions) params(defaults validation.EvaluationParams) validation.EvaluationParams {
	p := defaults
	if o.QualityThreshold != nil {
		p.QualityThreshold = *o.QualityThreshold
	}
	if o.ComplianceThreshold != nil {
		p.ComplianceThreshold = *o.ComplianceThreshold
	}
	if o.Relevance != nil {
		p.Relevance = *o.Relevance
	}
	if o.PII != nil {
		p.PII = *o.PII
	}
	if o.Bias != nil {
		p.Bias = *o.Bias
	}
	return p
}

// HandleConnection evaluates each "evaluate" message and streams progress
// messages followed by a single "complete" or "error" message.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsRequest
		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "evaluate" {
			h.sendError(c, "Unsupported message type")
			continue
		}

		if err := h.streamEvaluation(c, msg); err != nil {
			logger.Error("Failed to stream evaluation", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) streamEvaluation(c *websocket.Conn, msg wsRequest) error {
	ctx := context.Background()

	ds, err := dataset.ReadCSV(strings.NewReader(msg.CSV))
	if err != nil {
		return h.sendError(c, clientMessage(err))
	}

	var (
		mu       sync.Mutex
		writeErr error
	)
	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if writeErr != nil {
			return
		}
		writeErr = c.WriteJSON(map[string]interface{}{
			"type":  "progress",
			"done":  done,
			"total": total,
		})
	}

	source := validation.SanitizeSource(msg.Source)
	run, result, err := h.runner.Run(ctx, ds, msg.Options.params(h.runner.Defaults()), source, progress)
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		logger.Error("Failed to evaluate dataset", zap.String("source", source), zap.Error(err))
		return h.sendError(c, clientMessage(err))
	}

	resp := evaluationResponse(run, result)
	resp["type"] = "complete"
	return c.WriteJSON(resp)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) error {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	return c.WriteJSON(msg)
}
