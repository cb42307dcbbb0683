// Package publish delivers published snapshots to external consumers.
//
// A Sink receives every snapshot after it has been made current in the
// store. Sink failures are reported to the caller and never affect the
// store or other sinks.
package publish

import (
	"bytes"
	"context"

	"github.com/newtron-network/routewatch/pkg/model"
)

// Sink is one publishing destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, s *model.Snapshot) error
	Close() error
}

// encode renders s in the published document format.
func encode(s *model.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CloseAll closes every sink and returns the first error.
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
