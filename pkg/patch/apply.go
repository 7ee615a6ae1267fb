package patch

import (
	"fmt"
)

// Apply replays an encoded operation stream against oldBytes and returns
// the reconstructed new bytes. Copy and skip operations advance a cursor
// over oldBytes; insert operations append their literal payload.
func Apply(oldBytes, encoded []byte) ([]byte, error) {
	ops, err := Unmarshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	return ApplyOperations(oldBytes, ops)
}

// ApplyOperations replays an already decoded operation stream
func ApplyOperations(oldBytes []byte, ops []Operation) ([]byte, error) {
	var out []byte
	oldPos := 0

	for i, op := range ops {
		switch op.Op {
		case OpCopy:
			end := oldPos + int(op.Length)
			if end > len(oldBytes) {
				return nil, fmt.Errorf("copy out of range at operation %d: need bytes %d..%d, old file has %d", i, oldPos, end, len(oldBytes))
			}
			out = append(out, oldBytes[oldPos:end]...)
			oldPos = end

		case OpInsert:
			out = append(out, op.Data...)
			if oldPos < len(oldBytes) {
				// mirror the encoder's one-byte nudge per literal byte
				oldPos += int(op.Length)
				if oldPos > len(oldBytes) {
					oldPos = len(oldBytes)
				}
			}

		case OpSkip:
			oldPos += int(op.Length)
			if oldPos > len(oldBytes) {
				return nil, fmt.Errorf("skip out of range at operation %d: cursor %d past end %d", i, oldPos, len(oldBytes))
			}

		default:
			return nil, fmt.Errorf("unknown opcode 0x%02x at operation %d", op.Op, i)
		}
	}

	return out, nil
}
