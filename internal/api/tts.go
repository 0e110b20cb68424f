package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/metrics"
	"github.com/felipepmaragno/solmate-api/internal/validate"
)

const (
	ttsMaxBytes = 10 << 20
	// ttsHoldBack is buffered before the 200 is committed; a failure inside it
	// still becomes the browser fallback.
	ttsHoldBack = 1 << 20
	ttsChunk    = 32 << 10

	ttsUpstream = "openai-tts"
)

var ttsLog = logging.NewEndpoint("tts")

func (h *Handler) handleTTS(w http.ResponseWriter, r *http.Request, body any) {
	ctx := r.Context()

	res := validate.TTS(body, validate.Limits{MaxTTSChars: h.cfg.TTSMaxLength}, h.cfg.TTSVoice)
	if !res.Valid {
		ttsLog.Warn(ctx, "invalid tts request", "errors", strings.Join(res.Errors, "; "))
		writeValidation(w, res.Errors)
		return
	}
	req := res.Data

	fallback := func(reason string, err error) {
		metrics.RecordTTSFallback(reason)
		args := []any{"reason", reason}
		if err != nil {
			args = append(args, "error", err.Error())
			if ue, ok := httputil.AsError(err); ok && ue.Kind == httputil.KindHTTP {
				args = append(args, "status", ue.Status, "body", logging.Snippet(ue.Body))
			}
		}
		ttsLog.Warn(ctx, "speech unavailable, browser fallback", args...)

		w.Header().Set(headerTTSFallback, "browser")
		w.Header().Set("Cache-Control", cacheNoStore)
		w.WriteHeader(http.StatusNoContent)
	}

	if !h.cfg.HasChatKey() || h.speech == nil {
		fallback("missing-key", nil)
		return
	}

	cb := h.breaker(ttsUpstream)
	if err := allowed(ctx, cb); err != nil {
		fallback("circuit-open", err)
		return
	}

	ttsLog.Start(ctx, "speech synthesis", "chars", len(req.Text), "voice", req.Voice, "format", string(req.Format))

	audio, err := h.speech.Speech(ctx, req)
	if err != nil {
		record(ctx, cb, err)
		fallback(failureKind(err), err)
		return
	}
	defer audio.Close()

	if audio.ContentLength > ttsMaxBytes {
		record(ctx, cb, domain.ErrAudioTooLarge)
		fallback("too-large", domain.ErrAudioTooLarge)
		return
	}

	head := make([]byte, ttsHoldBack)
	n, err := io.ReadFull(audio.Body, head)
	head = head[:n]
	complete := false
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		complete = true
	case err != nil:
		err = httputil.Classify(ctx, ttsUpstream, err)
		record(ctx, cb, err)
		fallback(failureKind(err), err)
		return
	}
	if n == 0 {
		record(ctx, cb, domain.ErrEmptyAudio)
		fallback("empty", domain.ErrEmptyAudio)
		return
	}

	contentType := audio.ContentType
	if !strings.HasPrefix(contentType, "audio/") {
		contentType = req.Format.MIMEType()
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set(headerTTSSuccess, "openai")
	if complete {
		w.Header().Set("Content-Length", strconv.Itoa(n))
	}
	w.WriteHeader(http.StatusOK)

	written, err := streamAudio(ctx, w, audio.Body, head, complete)
	metrics.AddTTSBytes(written)
	if err != nil {
		record(ctx, cb, err)
		ttsLog.Error(ctx, "speech stream aborted", "bytes", written, "error", err.Error())
		panic(http.ErrAbortHandler)
	}

	record(ctx, cb, nil)
	ttsLog.OK(ctx, "speech delivered", "bytes", written, "content_type", contentType)
}

// streamAudio writes head, then copies the rest of src chunk by chunk,
// flushing after each so the client paces the upstream read. Read failures
// come back classified; write failures are the client's and come back raw.
func streamAudio(ctx context.Context, w http.ResponseWriter, src io.Reader, head []byte, complete bool) (int64, error) {
	rc := http.NewResponseController(w)

	if _, err := w.Write(head); err != nil {
		return 0, err
	}
	written := int64(len(head))
	if complete {
		return written, nil
	}
	rc.Flush()

	buf := make([]byte, ttsChunk)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if written+int64(n) > ttsMaxBytes {
				return written, domain.ErrAudioTooLarge
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			rc.Flush()
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, httputil.Classify(ctx, ttsUpstream, rerr)
		}
	}
}
