package main

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/telepath-dev/telepath/pkg/route"
)

func resolveCmd() *cobra.Command {
	var isURI bool

	cmd := &cobra.Command{
		Use:   "resolve [path]",
		Short: "Show which declaration handles a path",
		Long: `Resolve a path (or, with --uri, a full deep-link URI) against the
validated table and explain which declaration wins and why.

Without an argument the event carries no path and the home handler wins.

Examples:
  telepath resolve /orders/42
  telepath resolve --uri 'app://host/orders/42?ref=push'
  telepath resolve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			_, _, table, err := p.build()
			if err != nil {
				return err
			}

			var ev route.Event
			if len(args) == 1 {
				ev, err = eventFor(args[0], isURI)
				if err != nil {
					return err
				}
			}
			explain(cmd.OutOrStdout(), table, table.ResolveEvent(ev))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&isURI, "uri", "u", false, "Treat the argument as a URI and use its path")

	return cmd
}

func eventFor(arg string, isURI bool) (route.Event, error) {
	if isURI {
		return route.ParseURI(arg)
	}
	return route.NewURIEvent(&url.URL{Path: arg}, nil), nil
}

// explain prints the winning declaration and the reason it won.
func explain(w io.Writer, t *route.Table, m route.Match) {
	n := m.Node
	switch m.Kind {
	case route.MatchHome:
		fmt.Fprintln(w, "home: the event carries no path")
	case route.MatchExact:
		fmt.Fprintf(w, "exact: %s is declared at exactly this path\n", n.Path())
	case route.MatchPrefix:
		fmt.Fprintf(w, "prefix: %s is a prefix route and the nearest route before %s\n", n.Path(), m.Path)
	case route.MatchFallback:
		fmt.Fprintf(w, "fallback: no route is declared at %s and no prefix route covers it\n", m.Path)
		if prev := predecessor(t, m.Path); prev != nil {
			fmt.Fprintf(w, "  nearest route before it: %s (prefix=%t)\n", prev.Path(), prev.Prefix())
		}
	}

	fmt.Fprintf(w, "  handler:    %s\n", n.Signature())
	fmt.Fprintf(w, "  call order: %s\n", n.Binding().CallOrder())
	if n.Description() != "" {
		fmt.Fprintf(w, "  describes:  %s\n", n.Description())
	}
	if pos := n.Pos(); pos.IsValid() {
		fmt.Fprintf(w, "  declared:   %s\n", pos)
	}
}

// predecessor returns the last route sorting before path.
func predecessor(t *route.Table, path string) *route.Node {
	var prev *route.Node
	for _, n := range t.Nodes() {
		if n.Path() >= path {
			break
		}
		prev = n
	}
	return prev
}
