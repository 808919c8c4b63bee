package cli

import (
	"encoding/json"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/lcamatch/internal/indicator"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

const tabPadding = 2

//nolint:gochecknoglobals // stateless number printer
var numbers = message.NewPrinter(language.English)

// render writes v as indented JSON, or as the table drawn by table.
func (a *app) render(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.output == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(out, 0, 0, tabPadding, ' ', 0)
	table(w)
	return w.Flush()
}

// formatNumber prints f with thousands separators and up to three decimals.
func formatNumber(f float64) string {
	s := numbers.Sprintf("%.3f", f)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// formatValues prints the known indicators of v in registry order.
func formatValues(v indicator.Values) string {
	if v.IsEmpty() {
		return "-"
	}
	keys := v.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, string(k)+"="+formatNumber(v[k]))
	}
	return strings.Join(parts, " ")
}

func formatOptional(f *float64) string {
	if f == nil {
		return "-"
	}
	return formatNumber(*f)
}
