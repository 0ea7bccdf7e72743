// Package events encodes control-block lifecycle events for transport.
// The wire form is a protobuf google.protobuf.Struct so consumers need no
// generated code to read it.
package events

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"sharedref/domain/ownership"
)

const (
	fieldKind    = "kind"
	fieldBlock   = "block"
	fieldVariant = "variant"
	fieldSize    = "size"
)

var kinds = map[string]ownership.EventKind{
	ownership.BlockAllocated.String():  ownership.BlockAllocated,
	ownership.ObjectDestroyed.String(): ownership.ObjectDestroyed,
	ownership.BlockFreed.String():      ownership.BlockFreed,
}

var variants = map[string]ownership.Variant{
	ownership.Regular.String(): ownership.Regular,
	ownership.InPlace.String(): ownership.InPlace,
}

// Encode marshals e. Block IDs and sizes travel as decimal strings since
// Struct numbers are doubles.
func Encode(e ownership.Event) ([]byte, error) {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldKind:    structpb.NewStringValue(e.Kind.String()),
		fieldBlock:   structpb.NewStringValue(strconv.FormatUint(e.Block, 10)),
		fieldVariant: structpb.NewStringValue(e.Variant.String()),
		fieldSize:    structpb.NewStringValue(strconv.FormatUint(uint64(e.Size), 10)),
	}}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "events: marshal")
	}
	return b, nil
}

// Decode is the inverse of Encode.
func Decode(b []byte) (ownership.Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return ownership.Event{}, errors.Wrap(err, "events: unmarshal")
	}
	f := s.GetFields()

	kind, ok := kinds[f[fieldKind].GetStringValue()]
	if !ok {
		return ownership.Event{}, errors.Newf("events: unknown kind %q", f[fieldKind].GetStringValue())
	}
	variant, ok := variants[f[fieldVariant].GetStringValue()]
	if !ok {
		return ownership.Event{}, errors.Newf("events: unknown variant %q", f[fieldVariant].GetStringValue())
	}
	block, err := strconv.ParseUint(f[fieldBlock].GetStringValue(), 10, 64)
	if err != nil {
		return ownership.Event{}, errors.Wrap(err, "events: block id")
	}
	size, err := strconv.ParseUint(f[fieldSize].GetStringValue(), 10, 64)
	if err != nil {
		return ownership.Event{}, errors.Wrap(err, "events: size")
	}
	return ownership.Event{
		Kind:    kind,
		Block:   block,
		Variant: variant,
		Size:    uintptr(size),
	}, nil
}

// Key returns the partitioning key for e: events of one block stay in
// order on one partition.
func Key(e ownership.Event) []byte {
	return strconv.AppendUint(nil, e.Block, 10)
}
