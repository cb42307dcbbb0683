// Package rpcparse extracts typed records from Junos NETCONF replies.
//
// The parsers are total: a nil, empty or malformed reply yields an empty
// (non-nil) result, never an error. Elements are matched on local name only,
// since the namespace on interface-information and route-information changes
// between Junos releases.
package rpcparse

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// text returns the trimmed value of an optional element, "" when absent.
func text(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// required returns the trimmed value of a mandatory element and whether it
// was present and non-blank.
func required(s *string) (string, bool) {
	v := text(s)
	return v, v != ""
}

// each calls fn for every element named local, at any depth. fn must
// consume the element (DecodeElement or Skip).
func each(payload []byte, local string, fn func(d *xml.Decoder, start xml.StartElement) error) error {
	d := xml.NewDecoder(bytes.NewReader(payload))
	d.CharsetReader = charsetReader
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != local {
			continue
		}
		if err := fn(d, se); err != nil {
			return err
		}
	}
}

// charsetReader handles replies that declare a non UTF-8 encoding
// (older Junos releases send us-ascii).
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}
