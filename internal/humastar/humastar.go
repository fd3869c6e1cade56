// Package humastar joins Huma operations to Datastar streams.
//
// Editor handlers embed [Handler], read browser signals through
// [SignalsInput] and answer with a [huma.StreamResponse] built by
// [Handler.Stream]. REST handlers get hypermedia Link headers from
// [LinkTransformer].
package humastar

import (
	"bytes"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-pyro/internal/templates"
)

// Status signals shown by the editor sidebar. Setting one clears the other.
const (
	SignalError   = "error"
	SignalSuccess = "success"
)

// Handler is embedded by handlers that stream Datastar events.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn as a streaming response body.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) { fn(NewSSE(ctx)) },
	}
}

// RenderList renders items with tmpl, falling back to the empty-state
// fragment.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	return RenderList(h.Renderer, tmpl, items, emptyTitle, emptyMsg)
}

// SSE is one open Datastar event stream.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE opens the stream on the request behind ctx. It only works with the
// humago adapter.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the children of the element matched by selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html, datastar.WithSelector(selector), datastar.WithModeInner())
}

// Dispatch fires a DOM CustomEvent named event with detail marshaled as
// JSON. It fails once the client has gone.
func (s SSE) Dispatch(event string, detail any) error {
	return s.DispatchCustomEvent(event, detail)
}

// Error shows msg as the status line.
func (s SSE) Error(msg string) {
	s.Signals(map[string]any{SignalError: msg, SignalSuccess: ""})
}

// Success shows msg as the status line.
func (s SSE) Success(msg string) {
	s.Signals(map[string]any{SignalSuccess: msg, SignalError: ""})
}

// Signals merges signals into the page's signal store.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Signals is the flat JSON object Datastar posts with every action.
type Signals map[string]any

// ParseSignals decodes a request body. An empty body yields no signals.
func ParseSignals(body []byte) (Signals, error) {
	signals := Signals{}
	if len(bytes.TrimSpace(body)) == 0 {
		return signals, nil
	}
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns the string signal key, or "".
func (s Signals) String(key string) string {
	str, _ := s[key].(string)
	return str
}

// number reads a JSON number. Bound inputs post numbers as strings, which
// are accepted too.
func (s Signals) number(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := json.Number(v).Float64()
		return f, err == nil
	}
	return 0, false
}

// Int returns the signal key truncated to an int, or 0.
func (s Signals) Int(key string) int {
	f, _ := s.number(key)
	return int(f)
}

// Float returns the signal key as a float64, or 0.
func (s Signals) Float(key string) float64 {
	f, _ := s.number(key)
	return f
}

// Bool returns the bool signal key, or false.
func (s Signals) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

// Has reports whether key was posted at all.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// EmptyInput is for operations without parameters.
type EmptyInput struct{}

// SignalsInput takes the raw Datastar signals body.
type SignalsInput struct {
	RawBody []byte
}

// Parse decodes the signals.
func (i *SignalsInput) Parse() (Signals, error) {
	return ParseSignals(i.RawBody)
}

// MustParse decodes the signals, turning failure into a 400.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := i.Parse()
	if err != nil {
		return nil, huma.Error400BadRequest("malformed signals: " + err.Error())
	}
	return signals, nil
}

// RenderList renders each item with tmpl, or the empty-state fragment when
// there are none. A template failure leaves that item out.
func RenderList(r *templates.Renderer, tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		_ = r.RenderToBuffer(&buf, "empty-state", map[string]string{"Title": emptyTitle, "Message": emptyMsg})
		return buf.String()
	}
	for _, item := range items {
		_ = r.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}
