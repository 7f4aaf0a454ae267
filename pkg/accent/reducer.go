// Package accent streams a Sloleks-style lexicon export and keeps, for each
// orthographic word form, the accent pattern of its most frequent
// representation.
package accent

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrStructure reports nesting that does not match the lexicon hierarchy.
var ErrStructure = errors.New("malformed lexicon structure")

// level is one structural context of the lexicon hierarchy.
type level int

const (
	lexicalEntry level = iota + 1
	wordForm
	formRepresentation
	lemma
)

var levels = map[string]level{
	"LexicalEntry":       lexicalEntry,
	"WordForm":           wordForm,
	"FormRepresentation": formRepresentation,
	"Lemma":              lemma,
}

// Fields names the feat attributes captured inside a form representation.
type Fields struct {
	Form      string
	Frequency string
	Accent    string
}

// DefaultFields are the Sloleks attribute names.
var DefaultFields = Fields{
	Form:      "zapis_oblike",
	Frequency: "pogostnost",
	Accent:    "naglasna_mesta_besede",
}

// Entry is the best accent pattern seen for a form so far.
type Entry struct {
	Frequency int
	Accent    string
}

// Pair is one output row.
type Pair struct {
	Form   string
	Accent string
}

type capture struct {
	form      string
	freq      int
	accent    string
	hasForm   bool
	hasFreq   bool
	hasAccent bool
}

func (c capture) complete() bool { return c.hasForm && c.hasFreq && c.hasAccent }

// Reducer is the state machine driven by element start/end events.
type Reducer struct {
	Fields Fields
	// Incomplete counts form representations lacking one of the fields.
	Incomplete int

	stack []level
	cur   capture
	best  map[string]Entry
	order []string
}

// NewReducer returns an empty Reducer using DefaultFields.
func NewReducer() *Reducer {
	return &Reducer{Fields: DefaultFields, best: make(map[string]Entry)}
}

// Start handles an opening element.
func (r *Reducer) Start(name string, attrs []xml.Attr) error {
	if lv, ok := levels[name]; ok {
		r.stack = append(r.stack, lv)
		return nil
	}
	if name != "feat" || len(r.stack) == 0 || r.stack[len(r.stack)-1] != formRepresentation {
		return nil
	}

	var att, val string
	for _, a := range attrs {
		switch a.Name.Local {
		case "att":
			att = a.Value
		case "val":
			val = a.Value
		}
	}
	switch att {
	case r.Fields.Form:
		r.cur.form, r.cur.hasForm = val, true
	case r.Fields.Frequency:
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("frequency %q: %w", val, err)
		}
		r.cur.freq, r.cur.hasFreq = n, true
	case r.Fields.Accent:
		r.cur.accent, r.cur.hasAccent = val, true
	}
	return nil
}

// End handles a closing element. Leaving a form representation commits the
// captured values when they beat (or tie) the stored frequency.
func (r *Reducer) End(name string) error {
	lv, ok := levels[name]
	if !ok {
		return nil
	}
	if len(r.stack) == 0 || r.stack[len(r.stack)-1] != lv {
		return fmt.Errorf("%w: unexpected </%s>", ErrStructure, name)
	}
	r.stack = r.stack[:len(r.stack)-1]

	if lv == formRepresentation {
		r.commit()
	}
	return nil
}

func (r *Reducer) commit() {
	c := r.cur
	r.cur = capture{}
	if !c.complete() {
		r.Incomplete++
		return
	}
	// A new form starts from the zero Entry (0, ""), which only a
	// non-negative frequency replaces.
	e, seen := r.best[c.form]
	if !seen {
		r.order = append(r.order, c.form)
		r.best[c.form] = e
	}
	if e.Frequency <= c.freq {
		r.best[c.form] = Entry{Frequency: c.freq, Accent: c.accent}
	}
}

// Lookup returns the stored entry for form.
func (r *Reducer) Lookup(form string) (Entry, bool) {
	e, ok := r.best[form]
	return e, ok
}

// Pairs returns one row per distinct form in first-seen order.
func (r *Reducer) Pairs() []Pair {
	out := make([]Pair, 0, len(r.order))
	for _, f := range r.order {
		out = append(out, Pair{Form: f, Accent: r.best[f].Accent})
	}
	return out
}

// Parse streams the document in rd through the reducer.
func (r *Reducer) Parse(ctx context.Context, rd io.Reader) error {
	dec := xml.NewDecoder(rd)
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				return fmt.Errorf("%w: %v", ErrStructure, err)
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := r.Start(t.Name.Local, t.Attr); err != nil {
				line, _ := dec.InputPos()
				return fmt.Errorf("line %d: %w", line, err)
			}
		case xml.EndElement:
			if err := r.End(t.Name.Local); err != nil {
				return err
			}
		}
	}
	if len(r.stack) != 0 {
		return fmt.Errorf("%w: %d unclosed elements", ErrStructure, len(r.stack))
	}
	return nil
}

// Reduce parses rd with a fresh Reducer and returns its rows.
func Reduce(ctx context.Context, rd io.Reader) ([]Pair, error) {
	r := NewReducer()
	if err := r.Parse(ctx, rd); err != nil {
		return nil, err
	}
	return r.Pairs(), nil
}
