// internal/httpapi/httpapi.go
//
// Local HTTP surface: bridge status, radio commands and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/fsbridge/internal/bcd"
	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/radio"
)

// Host is the session view the API reports.
type Host interface {
	State() fsconnect.State
	Info() fsconnect.ConnectionInfo
	Paused() bool
}

// Radios is the radio control the API drives.
type Radios interface {
	Frequencies() radio.Frequencies
	Updated() time.Time
	Refresh(ctx context.Context) (radio.Frequencies, error)
	SetStandby(r radio.Radio, mhz float64) error
	SetActive(r radio.Radio, mhz float64) error
	Swap(r radio.Radio) error
}

// New returns the API router. gatherer may be nil to omit /metrics.
func New(host Host, radios Radios, gatherer prometheus.Gatherer, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	a := &api{host: host, radios: radios, log: log.With("component", "httpapi")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", a.status)
	r.Post("/refresh", a.refresh)
	r.Route("/radio/{radio}", func(r chi.Router) {
		r.Post("/standby", a.tune(Radios.SetStandby))
		r.Post("/active", a.tune(Radios.SetActive))
		r.Post("/swap", a.swap)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	return r
}

type api struct {
	host   Host
	radios Radios
	log    *slog.Logger
}

// ---- responses ----

type StatusResponse struct {
	State       string            `json:"state"`
	Connected   bool              `json:"connected"`
	Paused      bool              `json:"paused"`
	Host        *HostInfo         `json:"host,omitempty"`
	Frequencies radio.Frequencies `json:"frequencies"`
	Updated     *time.Time        `json:"updated,omitempty"`
}

type HostInfo struct {
	Application string `json:"application"`
	Version     string `json:"version"`
	Build       string `json:"build"`
	LinkVersion string `json:"link_version"`
	LinkBuild   string `json:"link_build"`
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	st := a.host.State()
	resp := StatusResponse{
		State:       st.String(),
		Connected:   st == fsconnect.StateConnected,
		Paused:      a.host.Paused(),
		Frequencies: a.radios.Frequencies(),
	}
	if resp.Connected {
		info := a.host.Info()
		resp.Host = &HostInfo{
			Application: info.ApplicationName,
			Version:     info.ApplicationVersion,
			Build:       info.ApplicationBuild,
			LinkVersion: info.SimConnectVersion,
			LinkBuild:   info.SimConnectBuild,
		}
	}
	if u := a.radios.Updated(); !u.IsZero() {
		resp.Updated = &u
	}
	render.JSON(w, r, resp)
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	f, err := a.radios.Refresh(r.Context())
	if err != nil {
		_ = render.Render(w, r, errFor(err))
		return
	}
	render.JSON(w, r, f)
}

// ---- commands ----

// TuneRequest is the body of the standby and active endpoints.
type TuneRequest struct {
	MHz *float64 `json:"mhz"`
}

func (t *TuneRequest) Bind(*http.Request) error {
	if t.MHz == nil {
		return errors.New("mhz is required")
	}
	return nil
}

func (a *api) tune(set func(Radios, radio.Radio, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd, err := radio.ParseRadio(chi.URLParam(r, "radio"))
		if err != nil {
			_ = render.Render(w, r, ErrNotFound(err))
			return
		}
		var req TuneRequest
		if err := render.Bind(r, &req); err != nil {
			_ = render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		if err := set(a.radios, rd, *req.MHz); err != nil {
			_ = render.Render(w, r, errFor(err))
			return
		}
		a.log.Info("tune", "radio", rd.String(), "path", r.URL.Path, "mhz", *req.MHz)
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]any{"radio": rd.String(), "mhz": *req.MHz})
	}
}

func (a *api) swap(w http.ResponseWriter, r *http.Request) {
	rd, err := radio.ParseRadio(chi.URLParam(r, "radio"))
	if err != nil {
		_ = render.Render(w, r, ErrNotFound(err))
		return
	}
	if err := a.radios.Swap(rd); err != nil {
		_ = render.Render(w, r, errFor(err))
		return
	}
	a.log.Info("swap", "radio", rd.String())
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{"radio": rd.String()})
}

// ---- errors ----

// ErrResponse is the JSON error body.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func newErr(code int, err error) *ErrResponse {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: code,
		StatusText:     http.StatusText(code),
		ErrorText:      err.Error(),
	}
}

func ErrInvalidRequest(err error) render.Renderer { return newErr(http.StatusBadRequest, err) }
func ErrNotFound(err error) render.Renderer       { return newErr(http.StatusNotFound, err) }

// errFor maps domain errors onto HTTP status codes.
func errFor(err error) render.Renderer {
	switch {
	case errors.Is(err, radio.ErrOutOfRange),
		errors.Is(err, bcd.ErrPrecision),
		errors.Is(err, bcd.ErrRange):
		return newErr(http.StatusUnprocessableEntity, err)
	case errors.Is(err, fsconnect.ErrNotConnected),
		errors.Is(err, fsconnect.ErrDisconnected):
		return newErr(http.StatusServiceUnavailable, err)
	case errors.Is(err, fsconnect.ErrNoResponse),
		errors.Is(err, context.DeadlineExceeded):
		return newErr(http.StatusGatewayTimeout, err)
	}
	return newErr(http.StatusBadGateway, err)
}
