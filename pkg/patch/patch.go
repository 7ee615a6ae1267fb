// Package patch implements the binary delta codec: a compact operation
// stream that reconstructs a new file's bytes from an old file's bytes
// plus literal insertions.
//
// Wire format, per operation: 1-byte opcode, uint32 little-endian length,
// then the literal payload for insert operations. The codec's correctness
// law is that Apply(old, Encode(old, new)) always reproduces new exactly.
package patch

import (
	"errors"
	"fmt"
)

// Opcodes of the operation stream
const (
	// OpCopy copies the next N bytes from the old file
	OpCopy byte = 1
	// OpInsert appends N literal bytes carried in the stream
	OpInsert byte = 2
	// OpSkip advances the old-side cursor by N bytes without producing
	// output. The encoder never emits it; it is honored on apply so
	// externally authored patches using it remain valid.
	OpSkip byte = 3
)

// Matcher tuning. The matcher is positional: it only recognizes runs that
// line up with the current cursors in both files, so it recovers well from
// in-place substitutions but not from insertions or deletions that shift
// the remainder of the stream.
const (
	// matchWindow bounds how far a single copy run may extend
	matchWindow = 1024
	// minMatchRun is the shortest run worth a copy operation
	minMatchRun = 4
	// insertChunkSize bounds the payload of a single insert operation
	insertChunkSize = 64
)

// worthinessThreshold is the fraction of the new file's size at or above
// which an encoded patch is rejected and the file ships whole instead
const worthinessThreshold = 0.8

// opHeaderSize is the encoded size of an operation header
const opHeaderSize = 5

// ErrNotWorthwhile reports that the encoded patch would be at least 80%
// of the new file's size, so shipping the whole file is cheaper
var ErrNotWorthwhile = errors.New("patch not worthwhile: encoded size too close to target size")

// Operation is one step of a reconstruction program
type Operation struct {
	// Op is one of OpCopy, OpInsert, OpSkip
	Op byte

	// Length is the byte count the operation covers
	Length uint32

	// Data is the literal payload; set only for OpInsert
	Data []byte
}

// Patch is an ordered operation stream plus the metadata the manifest
// records about it
type Patch struct {
	// Operations in application order
	Operations []Operation

	// TargetFile is the relative path the patch applies to
	TargetFile string

	// OriginalSize is the byte size of the new version of the target
	OriginalSize int64

	// PatchSize is the encoded byte size of the operation stream
	PatchSize int64

	// SizeReduction is OriginalSize minus PatchSize
	SizeReduction int64

	// ReductionPercentage is SizeReduction relative to OriginalSize
	ReductionPercentage float64

	// TargetHash is the content hash the target must have after apply
	TargetHash string
}

// Marshal encodes the operation stream to its binary wire form
func (p *Patch) Marshal() []byte {
	out := make([]byte, 0, p.PatchSize)
	for _, op := range p.Operations {
		out = append(out, op.Op)
		out = appendUint32(out, op.Length)
		if op.Op == OpInsert {
			out = append(out, op.Data...)
		}
	}
	return out
}

// Unmarshal decodes a binary operation stream
func Unmarshal(data []byte) ([]Operation, error) {
	var ops []Operation
	pos := 0

	for pos < len(data) {
		if len(data)-pos < opHeaderSize {
			return nil, fmt.Errorf("truncated operation header at offset %d", pos)
		}

		op := data[pos]
		length := readUint32(data[pos+1:])
		pos += opHeaderSize

		switch op {
		case OpCopy, OpSkip:
			ops = append(ops, Operation{Op: op, Length: length})
		case OpInsert:
			if uint32(len(data)-pos) < length {
				return nil, fmt.Errorf("truncated insert payload at offset %d: need %d bytes, have %d", pos, length, len(data)-pos)
			}
			payload := make([]byte, length)
			copy(payload, data[pos:pos+int(length)])
			ops = append(ops, Operation{Op: op, Length: length, Data: payload})
			pos += int(length)
		default:
			return nil, fmt.Errorf("unknown opcode 0x%02x at offset %d", op, pos-opHeaderSize)
		}
	}

	return ops, nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
