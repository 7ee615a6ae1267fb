package patch

import (
	"github.com/avendale/updraft/pkg/checksum"
)

// Encode computes the delta from oldBytes to newBytes.
//
// The matcher walks newBytes from the start. At each position it measures
// the run of bytes matching oldBytes at the current aligned cursor, up to
// matchWindow. A run of at least minMatchRun becomes a copy operation and
// advances both cursors; otherwise the current new byte joins a pending
// literal and both cursors step forward by one, which keeps the streams
// aligned across in-place substitutions. Pending literals flush as insert
// operations of at most insertChunkSize bytes.
//
// Returns ErrNotWorthwhile when the encoded stream is at least 80% of the
// new file's size; such files ship whole in the new-files archive instead.
func Encode(oldBytes, newBytes []byte) (*Patch, error) {
	var ops []Operation
	var pending []byte

	flush := func() {
		for len(pending) > 0 {
			chunk := len(pending)
			if chunk > insertChunkSize {
				chunk = insertChunkSize
			}
			data := make([]byte, chunk)
			copy(data, pending[:chunk])
			ops = append(ops, Operation{Op: OpInsert, Length: uint32(chunk), Data: data})
			pending = pending[chunk:]
		}
		pending = pending[:0]
	}

	oldPos, newPos := 0, 0
	for newPos < len(newBytes) {
		run := matchRun(oldBytes, newBytes, oldPos, newPos)
		if run >= minMatchRun {
			flush()
			ops = append(ops, Operation{Op: OpCopy, Length: uint32(run)})
			oldPos += run
			newPos += run
			continue
		}

		pending = append(pending, newBytes[newPos])
		newPos++
		if oldPos < len(oldBytes) {
			oldPos++
		}
	}
	flush()

	p := &Patch{
		Operations:   ops,
		OriginalSize: int64(len(newBytes)),
		TargetHash:   checksum.Sum(newBytes),
	}
	p.PatchSize = encodedSize(ops)
	p.SizeReduction = p.OriginalSize - p.PatchSize
	if p.OriginalSize > 0 {
		p.ReductionPercentage = float64(p.SizeReduction) / float64(p.OriginalSize) * 100
	}

	if len(newBytes) > 0 && float64(p.PatchSize) >= worthinessThreshold*float64(len(newBytes)) {
		return nil, ErrNotWorthwhile
	}

	return p, nil
}

// matchRun measures the length of the literal byte run shared by old and
// new starting at the given aligned cursors, bounded by matchWindow
func matchRun(oldBytes, newBytes []byte, oldPos, newPos int) int {
	run := 0
	for run < matchWindow &&
		oldPos+run < len(oldBytes) &&
		newPos+run < len(newBytes) &&
		oldBytes[oldPos+run] == newBytes[newPos+run] {
		run++
	}
	return run
}

// encodedSize returns the wire size of an operation stream
func encodedSize(ops []Operation) int64 {
	var size int64
	for _, op := range ops {
		size += opHeaderSize
		if op.Op == OpInsert {
			size += int64(op.Length)
		}
	}
	return size
}
