// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import "fmt"

// validate checks that ops reconstruct both inputs and returns an error on the
// first violation.
func validate(original, modified []string, ops []DiffOp) error {
	var i, j int
	for k, op := range ops {
		switch op.Kind {
		case OpEqual:
			if i >= len(original) || j >= len(modified) {
				return fmt.Errorf("op[%d]: equal past end of input", k)
			}
			if original[i] != op.Line || modified[j] != op.Line {
				return fmt.Errorf("op[%d]: equal line does not match both inputs", k)
			}
			i++
			j++
		case OpDelete:
			if i >= len(original) || original[i] != op.Line {
				return fmt.Errorf("op[%d]: delete does not match original line %d", k, i+1)
			}
			i++
		case OpInsert:
			if j >= len(modified) || modified[j] != op.Line {
				return fmt.Errorf("op[%d]: insert does not match modified line %d", k, j+1)
			}
			j++
		default:
			return fmt.Errorf("op[%d]: unknown kind %d", k, int(op.Kind))
		}
	}

	if i != len(original) {
		return fmt.Errorf("ops consume %d of %d original lines", i, len(original))
	}
	if j != len(modified) {
		return fmt.Errorf("ops consume %d of %d modified lines", j, len(modified))
	}
	return nil
}
