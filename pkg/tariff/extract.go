package tariff

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/types"
)

const (
	// DayKeyword marks the day band row on the Electrohold price page.
	DayKeyword = "Дневна"
	// NightKeyword marks the night band row on the Electrohold price page.
	NightKeyword = "Нощна"
)

// amountPattern matches a decimal amount followed by a euro marker, e.g.
// "0,12478 €/кВтч" or "0.12478 EUR".
var amountPattern = regexp.MustCompile(`(\d+[,.]\d+)\s*(?:€|EUR)`)

// Window bounds a plausible component value. Both ends are exclusive and a zero
// Max leaves the upper end open.
type Window struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether v lies strictly inside the window.
func (w Window) Contains(v decimal.Decimal) bool {
	if !v.GreaterThan(w.Min) {
		return false
	}
	if !w.Max.IsZero() && !v.LessThan(w.Max) {
		return false
	}
	return true
}

// Rule maps a labelled row to a component. The window is the tie-break that
// picks the final, fee-inclusive, pre-VAT column when a row holds several
// amounts.
type Rule struct {
	Component string `json:"component"`
	Keyword   string `json:"keyword"`
	Window    Window `json:"-"`

	// MinValue and MaxValue are the JSON form of Window used by flag configured
	// fee rules.
	MinValue string `json:"min,omitempty"`
	MaxValue string `json:"max,omitempty"`
}

// DefaultRules returns the day and night base rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			Component: types.ComponentDayBase,
			Keyword:   DayKeyword,
			Window:    Window{Min: decimal.RequireFromString("0.1")},
		},
		{
			Component: types.ComponentNightBase,
			Keyword:   NightKeyword,
			Window: Window{
				Min: decimal.RequireFromString("0.05"),
				Max: decimal.RequireFromString("0.1"),
			},
		},
	}
}

// Extractor locates tariff components in a semi-structured price page.
type Extractor struct {
	rules []Rule
}

// NewExtractor returns an Extractor using the default day/night rules followed
// by any extra fee rules. Fee rules whose bounds fail to parse are skipped.
func NewExtractor(fees ...Rule) *Extractor {
	rules := DefaultRules()
	for _, f := range fees {
		r, ok := f.resolveWindow()
		if !ok || r.Component == "" || r.Keyword == "" {
			continue
		}
		rules = append(rules, r)
	}
	return &Extractor{rules: rules}
}

func (r Rule) resolveWindow() (Rule, bool) {
	if r.MinValue != "" {
		v, err := decimal.NewFromString(r.MinValue)
		if err != nil {
			return r, false
		}
		r.Window.Min = v
	}
	if r.MaxValue != "" {
		v, err := decimal.NewFromString(r.MaxValue)
		if err != nil {
			return r, false
		}
		r.Window.Max = v
	}
	return r, true
}

// Extract scans the document for labelled rows and returns every component it
// could find. Malformed input yields fewer components, never an error.
func (e *Extractor) Extract(ctx context.Context, doc types.RawDocument) types.TariffComponents {
	components := make(types.TariffComponents)

	rows, err := tableRows(doc.Body)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to parse document as html", slog.Any("error", err))
	}
	log.Ctx(ctx).DebugContext(ctx, "scanning table rows", slog.Int("rows", len(rows)))

	e.scan(ctx, rows, components)

	if missing := e.missing(components); len(missing) > 0 {
		// prices may sit in plain text blocks next to a keyword-only table
		lines := textLines(doc.Body)
		log.Ctx(ctx).DebugContext(
			ctx,
			"scanning text for missing components",
			slog.Any("missing", missing),
			slog.Int("lines", len(lines)),
		)
		segments := make([][]string, 0, len(lines))
		for _, l := range lines {
			segments = append(segments, []string{l})
		}
		fromText := make(types.TariffComponents)
		e.scan(ctx, segments, fromText)
		for name, v := range fromText {
			if _, ok := components[name]; !ok {
				components[name] = v
			}
		}
	}

	if missing := e.missing(components); len(missing) > 0 {
		log.Ctx(ctx).WarnContext(ctx, "could not find some tariff components", slog.Any("missing", missing))
	}
	log.Ctx(ctx).DebugContext(ctx, "tariff extraction complete", slog.Int("found", len(components)))
	return components
}

// missing returns the day/night components not yet found.
func (e *Extractor) missing(components types.TariffComponents) []string {
	var missing []string
	for _, r := range e.rules[:2] {
		if _, ok := components[r.Component]; !ok {
			missing = append(missing, r.Component)
		}
	}
	return missing
}

// scan matches each row against the rules and records plausible values.
func (e *Extractor) scan(ctx context.Context, rows [][]string, components types.TariffComponents) {
	for _, cells := range rows {
		rule, ok := e.match(cells)
		if !ok {
			continue
		}
		v, ok := firstInWindow(cells, rule.Window)
		if !ok {
			log.Ctx(ctx).DebugContext(
				ctx,
				"no plausible amount in row",
				slog.String("component", rule.Component),
				slog.Any("cells", cells),
			)
			continue
		}
		// later rows replace earlier ones
		components[rule.Component] = v
		log.Ctx(ctx).DebugContext(
			ctx,
			"found tariff component",
			slog.String("component", rule.Component),
			slog.String("value", v.String()),
		)
	}
}

func (e *Extractor) match(cells []string) (Rule, bool) {
	for _, r := range e.rules {
		for _, c := range cells {
			if strings.Contains(c, r.Keyword) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

func firstInWindow(cells []string, w Window) (decimal.Decimal, bool) {
	for _, c := range cells {
		for _, m := range amountPattern.FindAllStringSubmatch(c, -1) {
			v, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
			if err != nil {
				continue
			}
			if w.Contains(v) {
				return v, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func tableRows(body string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	var rows [][]string
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, normalizeSpace(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows, nil
}

const blockElements = "p, div, br, li, tr, table, section, article, h1, h2, h3, h4, h5, h6"

func textLines(body string) []string {
	text := body
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		// keep block elements on their own lines
		doc.Find(blockElements).AfterHtml("\n")
		text = doc.Text()
	}
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = normalizeSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// normalizeSpace collapses all whitespace, including non-breaking spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
