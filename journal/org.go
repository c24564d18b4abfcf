package journal

import (
	"strings"
	"text/template"
	"time"
)

const fillOrgTemplate = `** Fill: {{upper .Side}} {{.Symbol}} ({{short .TradeID}})
:PROPERTIES:
:TRADE_ID: {{.TradeID}}
:ORDER_ID: {{.OrderID}}
:SYMBOL: {{.Symbol}}
:SIDE: {{.Side}}
:PRICE: {{printf "%.5f" .Price}}
:QUANTITY: {{printf "%g" .Quantity}}
:FEE: {{printf "%.2f" .Fee}}
:TIME: {{stamp .Time}}
{{with .Note}}:NOTE: {{.}}
{{end -}}
:END:

*** Thesis
-

*** Review
-
`

var fillOrg = template.Must(template.New("fill").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"short": shortID,
	"stamp": func(t time.Time) string { return stamp(t) },
}).Parse(fillOrgTemplate))

// FormatTradeOrg renders one fill as an Org-mode heading. The facts sit
// in a PROPERTIES drawer so org searches can find them.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	// the template only fails on a write error, never for a Builder
	_ = fillOrg.Execute(&b, t)
	return b.String()
}

// FormatTradesOrg renders fills separated by a blank line.
func FormatTradesOrg(trades []TradeRecord) string {
	blocks := make([]string, len(trades))
	for i, t := range trades {
		blocks[i] = FormatTradeOrg(t)
	}
	return strings.Join(blocks, "\n\n")
}

func shortID(full string) string {
	if len(full) > 8 {
		return full[:8]
	}
	return full
}
