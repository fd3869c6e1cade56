package humastar

import "fmt"

// Action is a state-dependent hypermedia action link, emitted as
//
//	<url>; rel="delete"; method="DELETE"; title="Remove annotation"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string // optional JSON Schema URL for the request body
}

// Actor is implemented by response bodies that offer actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	if a.Schema != "" {
		h += fmt.Sprintf(`; schema="%s"`, a.Schema)
	}
	return h
}

// ActionDef is a reusable action template. Pattern takes the resource ID
// through a single %s verb, e.g. "/api/v1/annotations/%s".
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
	Schema  string
}

// ActionsFor expands defs for one resource ID.
func ActionsFor(id string, defs []ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, id),
			Method: d.Method,
			Title:  d.Title,
			Schema: d.Schema,
		}
	}
	return actions
}
