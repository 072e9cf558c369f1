package transcriptapi

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"visionary/internal/blobstore"
	"visionary/internal/domain"
	"visionary/internal/logging"
)

// SavePath is the route of the persistence endpoint.
const SavePath = "/api/save-transcript"

const defaultMaxBodyBytes int64 = 1 << 20

const (
	msgPayloadTooLarge    = "Payload too large"
	msgMissingTranscript  = "Missing transcript data"
	msgInvalidJSON        = "Invalid JSON body"
	msgInternalError      = "Internal Server Error"
	msgMethodNotAllowed   = "Method not allowed"
	msgUnauthorized       = "Unauthorized"
	msgUnsupportedContent = "Content-Type must be application/json"
	msgInvalidTimestamp   = "timestamp must be a non-negative integer"
)

// Options configures the persistence handler.
type Options struct {
	// Secret, when set, must be presented as a bearer token.
	Secret       string
	MaxBodyBytes int64
	Now          func() time.Time
	Logger       *slog.Logger
}

// Handler validates transcripts and writes them to a blob store.
type Handler struct {
	store   blobstore.Store
	secret  string
	maxBody int64
	now     func() time.Time
	log     *slog.Logger
}

func NewHandler(store blobstore.Store, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.L("transcriptapi")
	}
	return &Handler{
		store:   store,
		secret:  strings.TrimSpace(opts.Secret),
		maxBody: opts.MaxBodyBytes,
		now:     opts.Now,
		log:     opts.Logger,
	}
}

type saveRequest struct {
	Transcript json.RawMessage `json:"transcript"`
	Timestamp  *float64        `json:"timestamp"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, msgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	if !bearerAuthOK(r, h.secret) {
		http.Error(w, msgUnauthorized, http.StatusUnauthorized)
		return
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		http.Error(w, msgUnsupportedContent, http.StatusBadRequest)
		return
	}

	// The whole body counts against the limit, including bytes after the
	// JSON value.
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, msgPayloadTooLarge, http.StatusBadRequest)
			return
		}
		http.Error(w, msgInvalidJSON, http.StatusBadRequest)
		return
	}
	var req saveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		http.Error(w, msgInvalidJSON, http.StatusBadRequest)
		return
	}

	trimmed := bytes.TrimSpace(req.Transcript)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		http.Error(w, msgMissingTranscript, http.StatusBadRequest)
		return
	}
	if err := validateTranscript(trimmed); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body bytes.Buffer
	if err := json.Indent(&body, trimmed, "", "  "); err != nil {
		http.Error(w, msgInvalidJSON, http.StatusBadRequest)
		return
	}

	stamp, ok := h.sessionStamp(req.Timestamp)
	if !ok {
		http.Error(w, msgInvalidTimestamp, http.StatusBadRequest)
		return
	}
	pathname := "transcripts/session-" + stamp + ".json"

	info, err := h.store.Put(r.Context(), pathname, body.Bytes(), "application/json")
	if err != nil {
		h.log.Error("error saving transcript", slog.String("pathname", pathname), logging.Err(err))
		http.Error(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	h.log.Info("transcript saved", slog.String("pathname", info.Pathname), slog.Int64("size", info.Size))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(info)
}

// sessionStamp names the stored object. A missing or zero timestamp falls
// back to the current time in milliseconds.
func (h *Handler) sessionStamp(ts *float64) (string, bool) {
	if ts == nil || *ts == 0 {
		return strconv.FormatInt(h.now().UnixMilli(), 10), true
	}
	if *ts < 0 || *ts != math.Trunc(*ts) || *ts >= math.MaxInt64 {
		return "", false
	}
	return strconv.FormatInt(int64(*ts), 10), true
}

// validateTranscript requires a non-empty array of {speaker, text, timestamp}.
func validateTranscript(raw json.RawMessage) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return errors.New("transcript must be an array")
	}
	if len(entries) == 0 {
		return errors.New("transcript must not be empty")
	}
	for i, entry := range entries {
		var fields map[string]any
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			return fmt.Errorf("transcript[%d] must be an object", i)
		}
		speaker, ok := fields["speaker"].(string)
		if !ok || !domain.Speaker(speaker).Valid() {
			return fmt.Errorf("transcript[%d].speaker must be \"user\" or \"ai\"", i)
		}
		if _, ok := fields["text"].(string); !ok {
			return fmt.Errorf("transcript[%d].text must be a string", i)
		}
		if _, ok := fields["timestamp"].(float64); !ok {
			return fmt.Errorf("transcript[%d].timestamp must be a number", i)
		}
	}
	return nil
}

// bearerAuthOK accepts any request when expected is empty.
func bearerAuthOK(r *http.Request, expected string) bool {
	if expected == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}
