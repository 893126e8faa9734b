package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/site-roster/internal/application"
	"github.com/example/site-roster/internal/history"
)

var (
	errBadRequestBody       = errors.New("無効なリクエスト形式です。")
	errInvalidSiteID        = errors.New("無効な現場 ID です。")
	errInvalidSessionID     = errors.New("無効な履歴セッション ID です。")
	errUnknownSession       = errors.New("履歴セッションが見つからないか期限切れです。")
	errMissingAdminToken    = errors.New("管理トークンを指定してください。")
	errRateLimited          = errors.New("リクエストが多すぎます。しばらくしてから再試行してください。")
	errMalformedQueryParams = errors.New("クエリパラメータの形式が正しくありません。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   localizedStatusMessage(http.StatusBadRequest),
			Errors:    localizeValidationErrors(vErr),
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "ADMIN_TOKEN_REQUIRED",
			Message:   "この操作には有効な管理トークンが必要です。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: localizedStatusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrConflict), errors.Is(err, history.ErrBusy):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "CONFLICT", Message: localizedStatusMessage(http.StatusConflict)})
	case errors.Is(err, application.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "STORAGE_UNAVAILABLE",
			Message:   localizedStatusMessage(http.StatusServiceUnavailable),
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "入力内容に誤りがあります。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "セルが同時に更新されました。画面を更新して再試行してください。"
	case http.StatusTooManyRequests:
		return errRateLimited.Error()
	case http.StatusServiceUnavailable:
		return "データベースに接続できません。しばらくしてから再試行してください。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "workerId is required":
		return "作業者 ID は必須です。"
	case "day must be YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "weekStart must be YYYY-MM-DD":
		return "週の開始日は YYYY-MM-DD 形式で指定してください。"
	case "month must be YYYY-MM":
		return "月は YYYY-MM 形式で指定してください。"
	case "year must be YYYY":
		return "年は YYYY 形式で指定してください。"
	case "action must be one of toggle, add, remove, replace2, swap":
		return "操作は toggle, add, remove, replace2, swap のいずれかを指定してください。"
	case "siteId or siteName is required":
		return "現場 ID または現場名を指定してください。"
	case "siteId is required":
		return "現場 ID は必須です。"
	case "siteName is too long", "label is too long", "name is too long", "companyName is too long":
		return "200 文字以内で指定してください。"
	case "month or days is required":
		return "対象月または対象日を指定してください。"
	case "name is required":
		return "名前は必須です。"
	case "email must be a valid address":
		return "メールアドレスの形式が不正です。"
	case "usageThreshold must be positive":
		return "利用回数のしきい値は正の整数で指定してください。"
	case "intervalMonths must be between 1 and 12":
		return "間隔は 1〜12 か月で指定してください。"
	case "weekdays must be between 1 and 7", "at most 7 weekdays":
		return "曜日は 1（月）〜7（日）で 7 個以内で指定してください。"
	case "scope must be week:YYYY-MM-DD, month:YYYY-MM or year:YYYY":
		return "スコープは week:YYYY-MM-DD, month:YYYY-MM, year:YYYY のいずれかで指定してください。"
	case "monthDays must be between 1 and 31", "at most 31 month days":
		return "日付は 1〜31 で 31 個以内で指定してください。"
	default:
		if strings.HasPrefix(message, "at most ") && strings.HasSuffix(message, " days per request") {
			return "一度に指定できる日数は " + strings.TrimSuffix(strings.TrimPrefix(message, "at most "), " days per request") + " 日までです。"
		}
		return message
	}
}

type errorResponse struct {
	OK        bool              `json:"ok"`
	ErrorCode string            `json:"errorCode,omitempty"`
	Message   string            `json:"error"`
	Errors    map[string]string `json:"errors,omitempty"`
}
