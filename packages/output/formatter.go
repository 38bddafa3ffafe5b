package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hitbox/packages/http"
)

// Formatter renders the results of hitbox commands.
type Formatter interface {
	FormatExchange(exchange *http.Exchange)
	FormatError(err error)
	FormatHistory(exchanges []*http.Exchange)
	FormatStats(stats *Stats)
}

// New returns the formatter registered under name, writing to w. Console
// options are ignored by the JSON formatter.
func New(name string, w io.Writer, opts ...ConsoleOption) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(append([]ConsoleOption{WithWriter(w)}, opts...)...), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected console or json)", name)
	}
}
