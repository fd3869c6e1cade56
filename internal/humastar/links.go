package humastar

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// LinkMap maps operation paths to the RFC 8288 Link header values they
// always carry.
type LinkMap map[string][]string

// LinkTransformer returns a Huma Transformer that adds Link headers to
// every response:
//   - the static links registered for the operation path
//   - rel="self" for item paths
//   - pagination rels when the body is a [Pager]
//   - action rels when the body is an [Actor]
func LinkTransformer(links LinkMap) huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

// Link formats a single Link header value.
func Link(href, rel string) string {
	return fmt.Sprintf(`<%s>; rel="%s"`, href, rel)
}
