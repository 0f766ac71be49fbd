package feeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/feeder/internal/model"
	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
)

// Commander is the request surface shared by the HTTP, gRPC and MQTT front
// ends. *Controller implements it.
type Commander interface {
	FeedNow(ctx context.Context) (messages.FeedEvent, error)
	UpdateSchedule(ctx context.Context, upd messages.ConfigUpdate) (messages.UpdateResult, error)
	Schedule(ctx context.Context) (model.FeedingSchedule, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Status() messages.Status
}

var _ Commander = (*Controller)(nil)

const requestTimeout = 30 * time.Second

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// MuxConfig collects the pieces served next to the feeding API.
type MuxConfig struct {
	Metrics http.Handler
	Health  http.Handler
	Ready   http.Handler
}

// NewHTTPMux serves the configuration UI API:
//
//	GET  /schedule   current schedule
//	POST /schedule   JSON ConfigUpdate or form fields time, quantity, dispenseDurationMs
//	POST /feed       immediate feed
//	GET  /status     status snapshot
//	POST /pause      suspend polling
//	POST /resume     resume polling
func NewHTTPMux(cmd Commander, mc MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /schedule", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		s, err := cmd.Schedule(ctx)
		if err != nil {
			writeJSON(w, errorCode(err), apiError{err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, messages.NewScheduleView(s))
	})

	mux.HandleFunc("POST /schedule", func(w http.ResponseWriter, r *http.Request) {
		upd, err := decodeUpdate(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		res, err := cmd.UpdateSchedule(ctx, upd)
		switch {
		case errors.Is(err, ErrStopped), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeJSON(w, errorCode(err), apiError{err.Error()})
		case err != nil:
			// result still carries the field verdicts and the schedule kept
			w.Header().Set("X-Error", "persist-failed")
			writeJSON(w, http.StatusInternalServerError, res)
		case res.Rejected():
			writeJSON(w, http.StatusUnprocessableEntity, res)
		default:
			writeJSON(w, http.StatusOK, res)
		}
	})

	mux.HandleFunc("POST /feed", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		evt, err := cmd.FeedNow(ctx)
		switch {
		case err != nil && evt.ID == "":
			writeJSON(w, errorCode(err), apiError{err.Error()})
		case err != nil:
			w.Header().Set("X-Error", "dispense-failed")
			writeJSON(w, http.StatusInternalServerError, evt)
		default:
			writeJSON(w, http.StatusOK, evt)
		}
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, cmd.Status())
	})

	toggle := func(fn func(context.Context) error) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				writeJSON(w, errorCode(err), apiError{err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, cmd.Status())
		}
	}
	mux.HandleFunc("POST /pause", toggle(cmd.Pause))
	mux.HandleFunc("POST /resume", toggle(cmd.Resume))

	if mc.Metrics != nil {
		mux.Handle("/metrics", mc.Metrics)
	}
	if mc.Health != nil {
		mux.Handle("/healthz", mc.Health)
	}
	if mc.Ready != nil {
		mux.Handle("/readyz", mc.Ready)
	}
	return mux
}

// decodeUpdate accepts either a JSON body or the form fields posted by the
// configuration page.
func decodeUpdate(r *http.Request) (messages.ConfigUpdate, error) {
	var upd messages.ConfigUpdate
	ct := r.Header.Get("Content-Type")
	isMultipart := strings.HasPrefix(ct, "multipart/form-data")
	if isMultipart || strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		var err error
		if isMultipart {
			err = r.ParseMultipartForm(16 << 10)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return upd, err
		}
		upd.RequestID = r.Form.Get("request_id")
		upd.Time = r.Form.Get("time")
		upd.Quantity = r.Form.Get("quantity")
		upd.DispenseDurationMs = r.Form.Get("dispenseDurationMs")
		return upd, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<10))
	if err != nil {
		return upd, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return upd, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return upd, errors.New("invalid JSON body: " + err.Error())
	}
	return updateFromMap(raw), nil
}

// updateFromMap reads the update fields from a decoded JSON object. Numbers
// are turned back into text so every field goes through the same validator.
func updateFromMap(m map[string]any) messages.ConfigUpdate {
	return messages.ConfigUpdate{
		RequestID:          text(m["request_id"]),
		Time:               text(m["time"]),
		Quantity:           text(m["quantity"]),
		DispenseDurationMs: text(m["dispenseDurationMs"]),
	}
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
