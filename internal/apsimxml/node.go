// Package apsimxml provides a small generic element tree used to assemble
// APSIM classic (.apsim) documents.
package apsimxml

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// Node is a single XML element with attributes, text and child elements.
type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []*Node    `xml:",any"`
}

// Elem creates an element with the given local name.
func Elem(name string, children ...*Node) *Node {
	return &Node{XMLName: xml.Name{Local: name}, Nodes: children}
}

// Text creates a leaf element holding text.
func Text(name, text string) *Node {
	return &Node{XMLName: xml.Name{Local: name}, Text: text}
}

// Value creates a leaf element holding a number rounded to three decimals.
func Value(name string, v float64) *Node {
	return Text(name, Num(v))
}

// Doubles creates an element with one <double> child per value.
func Doubles(name string, values []float64) *Node {
	n := Elem(name)
	for _, v := range values {
		n.Add(Value("double", v))
	}
	return n
}

// Name returns the element's local name.
func (n *Node) Name() string { return n.XMLName.Local }

// Set sets (or replaces) an attribute and returns the node for chaining.
func (n *Node) Set(key, value string) *Node {
	for i := range n.Attrs {
		if n.Attrs[i].Name.Local == key {
			n.Attrs[i].Value = value
			return n
		}
	}
	n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: key}, Value: value})
	return n
}

// Attr returns the value of an attribute, or "" when it is absent.
func (n *Node) Attr(key string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == key {
			return a.Value
		}
	}
	return ""
}

// Add appends children and returns the node for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Nodes = append(n.Nodes, children...)
	return n
}

// Child returns the first direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Nodes {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Children returns every direct child with the given name.
func (n *Node) Children(name string) []*Node {
	var out []*Node
	for _, c := range n.Nodes {
		if c.Name() == name {
			out = append(out, c)
		}
	}
	return out
}

// Find walks a path of child names and returns the element at the end, or nil.
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, p := range path {
		if cur = cur.Child(p); cur == nil {
			return nil
		}
	}
	return cur
}

// Floats parses the text of every <double> child.
func (n *Node) Floats() ([]float64, error) {
	var out []float64
	for _, c := range n.Children("double") {
		v, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "apsimxml: parse %s value %q", n.Name(), c.Text)
		}
		out = append(out, v)
	}
	return out, nil
}

// Num formats v rounded to three decimals without locale or exponent.
func Num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 0):
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Encode writes n to w as indented XML.
func Encode(w io.Writer, n *Node, header bool) error {
	if header {
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return eris.Wrap(err, "apsimxml: write header")
		}
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(n); err != nil {
		return eris.Wrap(err, "apsimxml: encode")
	}
	if err := enc.Flush(); err != nil {
		return eris.Wrap(err, "apsimxml: flush")
	}
	return nil
}

// Marshal renders n as an indented XML string without a header.
func Marshal(n *Node) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, n, false); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Decode reads a single element tree from r. Documents declaring a
// non-UTF-8 encoding are transcoded through the HTML encoding index.
func Decode(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "apsimxml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var root Node
	if err := dec.Decode(&root); err != nil {
		return nil, eris.Wrap(err, "apsimxml: decode")
	}
	root.trim()
	return &root, nil
}

// trim drops the indentation whitespace the decoder keeps as chardata.
func (n *Node) trim() {
	if len(n.Nodes) > 0 && strings.TrimSpace(n.Text) == "" {
		n.Text = ""
	}
	for _, c := range n.Nodes {
		c.trim()
	}
}
