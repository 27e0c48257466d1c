// Package cda extracts clinical records from hierarchical CDA documents.
//
// National producers vary widely in how they populate entries, so extraction
// is driven by a declarative field map (section codes to ranked locator
// strategies) over a generic element tree rather than per-country structs or
// branching. Sections are discovered by their coded identifier, never by
// title text, which is localized per country.
package cda

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/crosscare/exchange/pkg/cdm"
)

// Node is a generic element in the parsed document tree. Locator paths
// navigate it by local element name, ignoring namespaces, because producers
// disagree on prefixing.
type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []Node     `xml:",any"`
	Text    string     `xml:",chardata"`
}

// Parse unmarshals a CDA document into its element tree. The root element
// must be ClinicalDocument.
func Parse(content []byte) (*Node, error) {
	var root Node
	dec := xml.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", cdm.ErrMalformedDocument, err)
	}
	if root.XMLName.Local != "ClinicalDocument" {
		return nil, fmt.Errorf("%w: root element is %q, want ClinicalDocument", cdm.ErrMalformedDocument, root.XMLName.Local)
	}
	return &root, nil
}

// Attr returns the named attribute value, or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Child returns the first child element with the given local name.
func (n *Node) Child(name string) *Node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

// Children returns all child elements with the given local name.
func (n *Node) Children(name string) []*Node {
	var out []*Node
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

// Find walks a slash-separated path of local element names and returns the
// first match, or nil.
func (n *Node) Find(path string) *Node {
	cur := n
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		cur = cur.Child(part)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// FindAll walks a slash-separated path and returns every match, branching at
// each level.
func (n *Node) FindAll(path string) []*Node {
	current := []*Node{n}
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		var next []*Node
		for _, c := range current {
			next = append(next, c.Children(part)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// FlatText returns all character data beneath the node, whitespace-collapsed.
func (n *Node) FlatText() string {
	var sb strings.Builder
	n.flatText(&sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func (n *Node) flatText(sb *strings.Builder) {
	if t := strings.TrimSpace(n.Text); t != "" {
		sb.WriteString(t)
		sb.WriteByte(' ')
	}
	for i := range n.Nodes {
		n.Nodes[i].flatText(sb)
	}
}

// firstAttr searches the subtree depth-first for the first non-empty value
// of the named attribute.
func (n *Node) firstAttr(name string) string {
	if v := n.Attr(name); v != "" {
		return v
	}
	for i := range n.Nodes {
		if v := n.Nodes[i].firstAttr(name); v != "" {
			return v
		}
	}
	return ""
}
