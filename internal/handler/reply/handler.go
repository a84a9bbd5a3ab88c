package reply

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/calm-companion/backend/internal/logging"
	replyService "github.com/zhouzirui/calm-companion/backend/internal/service/reply"
	"github.com/zhouzirui/calm-companion/backend/pkg/utils"
)

// MaxBodyBytes 请求体大小上限。
const MaxBodyBytes = 64 << 10

// Generator 根据用户输入生成回复。
type Generator interface {
	Generate(text string) replyService.Result
}

// Handler 回复服务的HTTP处理器
type Handler struct {
	replies Generator
	logger  *zap.Logger
	sockets *WebSocketHandler
}

// New 创建回复处理器
func New(replies Generator, logger *zap.Logger) *Handler {
	logger = logging.OrNop(logger)
	return &Handler{
		replies: replies,
		logger:  logger,
		sockets: NewWebSocketHandler(replies, logger),
	}
}

// RegisterRoutes 注册回复相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/reply", h.handleReply)
	h.sockets.RegisterWebSocketRoutes(r)
}

// handleHealth 健康检查
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReply 分类用户输入并返回一条支持性回复
func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > MaxBodyBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	text, err := decodeText(r)
	if err == nil {
		// JSON 值之后的剩余内容同样计入上限。
		_, err = io.Copy(io.Discard, r.Body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		// 非法 JSON 与缺失字段一样按空文本处理。
		h.logger.Debug("treating undecodable body as empty text",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	result, err := generate(h.replies, text)
	if err != nil {
		h.logger.Error("reply generation failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		utils.RespondError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// generate 调用生成器，并把 panic 转换为错误。
func generate(replies Generator, text string) (result replyService.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("generator panic: %v", rec)
		}
	}()
	if replies == nil {
		return replyService.Result{}, errors.New("reply generator unavailable")
	}
	return replies.Generate(text), nil
}

type replyRequest struct {
	Text json.RawMessage `json:"text"`
}

// decodeText 提取请求中的 text 字段；非字符串的值视为空文本。
func decodeText(r *http.Request) (string, error) {
	var payload replyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return "", err
	}
	return textField(payload.Text), nil
}

func textField(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return ""
	}
	return text
}
