package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	// IdempotencyKeyHeader задаётся клиентом.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader выставляется на ответах, взятых из кэша.
	IdempotentReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// idempotent сохраняет ответ обработчика под ключом из заголовка Idempotency-Key
// и повторяет его для запросов с тем же ключом и тем же телом.
// Без заголовка запрос обрабатывается как обычно.
func (h *Handler) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if key == "" || h.idempotency == nil {
			next(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			writeFailure(w, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeFailure(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller, _ := CallerFromContext(r.Context())
		// Ключ изолирован по пользователю: одинаковые ключи разных клиентов не пересекаются.
		storageKey := caller.UserID + ":" + key
		hash := buildIdempotencyRequestHash(r.Method, r.URL.Path, caller.UserID, body)
		logger := h.requestLogger(r).WithField("idempotency_key", key)

		record, err := h.idempotency.CreateProcessing(r.Context(), storageKey, hash, h.now().Add(h.idempotencyTTL))
		if err != nil {
			h.replayIdempotent(w, r, logger, record, err)
			return
		}

		capture := newCaptureWriter(w)
		next(capture, r)

		// Ответ уже отправлен клиенту, поэтому запись не должна зависеть от его соединения.
		saveCtx := context.WithoutCancel(r.Context())
		if capture.status < http.StatusBadRequest {
			err = h.idempotency.MarkDone(saveCtx, storageKey, capture.body.Bytes(), capture.status)
		} else {
			err = h.idempotency.MarkFailed(saveCtx, storageKey, capture.body.Bytes(), capture.status)
		}
		if err != nil {
			logger.WithError(err).Warn("failed to store idempotent response")
		}
		h.recordIdempotency(metrics.IdempotencyOutcomeProcessed)
	}
}

func (h *Handler) replayIdempotent(w http.ResponseWriter, r *http.Request, logger *log.Entry, record domain.IdempotencyRecord, createErr error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		h.recordIdempotency(metrics.IdempotencyOutcomeConflict)
		writeFailure(w, http.StatusConflict, "Idempotency-Key is already used with a different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
				logger.Warn("idempotency cache is empty")
				writeFailure(w, http.StatusInternalServerError, msgInternalError)
				return
			}
			h.recordIdempotency(metrics.IdempotencyOutcomeReplayed)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set(IdempotentReplayHeader, "true")
			w.WriteHeader(record.HTTPStatus)
			if _, err := w.Write(record.ResponseBody); err != nil {
				logger.WithError(err).Warn("failed to write replayed response")
			}
		case domain.IdempotencyStatusProcessing:
			h.recordIdempotency(metrics.IdempotencyOutcomeInProgress)
			writeFailure(w, http.StatusConflict, "Request with the same Idempotency-Key is already processing")
		default:
			logger.WithField("status", record.Status).Warn("unknown idempotency record status")
			writeFailure(w, http.StatusInternalServerError, msgInternalError)
		}
	default:
		h.writeError(w, r, createErr)
	}
}

func (h *Handler) recordIdempotency(outcome string) {
	if h.idemMetrics != nil {
		h.idemMetrics.RecordRequest(outcome)
	}
}

func buildIdempotencyRequestHash(method, path, userID string, body []byte) string {
	payload := make([]byte, 0, len(method)+len(path)+len(userID)+len(body)+3)
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, path...)
	payload = append(payload, ':')
	payload = append(payload, userID...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// captureWriter пишет ответ клиенту и одновременно сохраняет его копию.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w, status: http.StatusOK}
}

func (c *captureWriter) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
