package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mevlog-go/mevlog/internal/model"
)

// blockRange is an inclusive [From, To] block-number range, resolved
// against a known head.
type blockRange struct {
	From, To uint64
}

// parseBlockSpec implements §6's block-spec grammar: `N` (single block),
// "latest", "N:M" (closed range), and "N:"/"N:latest" (last N blocks ending
// at head). head is the current chain head, needed to resolve "latest" and
// the trailing-colon form.
func parseBlockSpec(spec string, head uint64) (blockRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return blockRange{}, model.NewError(model.KindFilter, "parseBlockSpec", fmt.Errorf("empty block spec"))
	}

	if spec == "latest" {
		return blockRange{From: head, To: head}, nil
	}

	if idx := strings.Index(spec, ":"); idx >= 0 {
		fromPart := spec[:idx]
		toPart := spec[idx+1:]

		n, err := parseBlockNumber(fromPart)
		if err != nil {
			return blockRange{}, err
		}

		if toPart == "" || toPart == "latest" {
			// "N:" / "N:latest": last N blocks ending at head (§8 boundary
			// scenario: "100:" with head=1000 -> from=901, to=1000).
			if n > head {
				return blockRange{}, model.NewError(model.KindFilter, "parseBlockSpec",
					fmt.Errorf("block spec %q requests more blocks than chain height (head=%d)", spec, head))
			}
			from := head - n + 1
			return blockRange{From: from, To: head}, nil
		}

		to, err := parseBlockNumber(toPart)
		if err != nil {
			return blockRange{}, err
		}
		if to < n {
			return blockRange{}, model.NewError(model.KindFilter, "parseBlockSpec", fmt.Errorf("block spec %q: to < from", spec))
		}
		return blockRange{From: n, To: to}, nil
	}

	n, err := parseBlockNumber(spec)
	if err != nil {
		return blockRange{}, err
	}
	return blockRange{From: n, To: n}, nil
}

func parseBlockNumber(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, model.NewError(model.KindFilter, "parseBlockNumber", fmt.Errorf("invalid block number %q: %w", s, err))
	}
	return n, nil
}

// numbersDescending returns every block number in r, from To down to From
// (§4.7's "block list is reversed by default: most recent first").
func (r blockRange) numbersDescending() []uint64 {
	out := make([]uint64, 0, r.To-r.From+1)
	for n := r.To; n >= r.From; n-- {
		out = append(out, n)
		if n == 0 {
			break
		}
	}
	return out
}

// clampRange enforces --max-range: errors if the range spans more blocks
// than maxRange allows (0 means unlimited).
func clampRange(r blockRange, maxRange uint64) error {
	if maxRange == 0 {
		return nil
	}
	span := r.To - r.From + 1
	if span > maxRange {
		return model.NewError(model.KindFilter, "clampRange", fmt.Errorf("block range spans %d blocks, exceeds --max-range %d", span, maxRange))
	}
	return nil
}
