// Package columnar implements BlockFetcher's columnar cache source (§4.3):
// a directory of immutable, range-named files holding pre-extracted
// transaction or log rows for a span of blocks. Grounded on
// misc/parquet_utils.rs; this port uses a compact binary+snappy row format
// (mirroring go-ethereum's own freezer choice of snappy-compressed,
// range-indexed tables) rather than literal Parquet, since no Parquet
// library is present in the corpus — see DESIGN.md.
package columnar

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/snappy"
)

// Kind distinguishes a file's row schema.
type Kind string

const (
	KindTransactions Kind = "transactions"
	KindLogs         Kind = "logs"
)

const padWidth = 9 // blocks fit comfortably in 9 digits for the foreseeable future

// Range is a file's covered, inclusive block span.
type Range struct {
	Start uint64
	End   uint64
	Path  string
}

// FileName renders the canonical `<chain>__<kind>__<start>_to_<end>.bin.snappy`
// name, zero-padded per padWidth.
func FileName(chain string, kind Kind, start, end uint64) string {
	return fmt.Sprintf("%s__%s__%0*d_to_%0*d.bin.snappy", chain, kind, padWidth, start, padWidth, end)
}

// Scan lists every file for kind in dir, parses its range from the name, and
// returns the ranges sorted by Start. Parsers tolerate any zero-padding
// width, per §6.
func Scan(dir string, kind Kind) ([]Range, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("columnar: scan %s: %w", dir, err)
	}

	var ranges []Range
	suffix := "__" + string(kind) + "__"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		idx := strings.Index(name, suffix)
		if idx < 0 {
			continue
		}
		rangePart := name[idx+len(suffix):]
		rangePart = strings.TrimSuffix(rangePart, filepath.Ext(rangePart))
		rangePart = strings.TrimSuffix(rangePart, ".bin")
		fields := strings.SplitN(rangePart, "_to_", 2)
		if len(fields) != 2 {
			continue
		}
		// ParseUint tolerates leading zeros regardless of padding width.
		start, err1 := strconv.ParseUint(fields[0], 10, 64)
		end, err2 := strconv.ParseUint(fields[1], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ranges = append(ranges, Range{Start: start, End: end, Path: filepath.Join(dir, name)})
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	return ranges, nil
}

// Gap is a missing sub-window within a requested [start, end] query.
type Gap struct {
	Start uint64
	End   uint64
}

// AnalyzeCoverage returns the disjoint, ordered list of sub-windows within
// [wantedStart, wantedEnd] not covered by any range in ranges. ranges need
// not be sorted or non-overlapping on input.
func AnalyzeCoverage(ranges []Range, wantedStart, wantedEnd uint64) []Gap {
	if wantedStart > wantedEnd {
		return nil
	}
	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var gaps []Gap
	cursor := wantedStart
	for _, r := range sorted {
		if r.End < cursor || r.Start > wantedEnd {
			continue
		}
		if r.Start > cursor {
			end := r.Start - 1
			if end > wantedEnd {
				end = wantedEnd
			}
			gaps = append(gaps, Gap{Start: cursor, End: end})
		}
		if r.End+1 > cursor {
			cursor = r.End + 1
		}
		if cursor > wantedEnd {
			break
		}
	}
	if cursor <= wantedEnd {
		gaps = append(gaps, Gap{Start: cursor, End: wantedEnd})
	}
	return gaps
}

// CollectFiles returns every range whose [Start,End] intersects [start,end].
func CollectFiles(ranges []Range, start, end uint64) []Range {
	var out []Range
	for _, r := range ranges {
		if r.End < start || r.Start > end {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// --- row encoding ---

// Row is one transaction record in a columnar transactions file. Field
// order/shape mirrors MEVTransaction::req_from_csv's CSV schema from
// original_source. The input-byte counts are not stored in a Row; they are
// computed from Input when a transaction is normalized.
type Row struct {
	BlockNumber           uint64
	TransactionIndex      uint32
	TransactionHash       [32]byte
	Nonce                 uint64
	From                  [20]byte
	To                    [20]byte
	HasTo                 bool
	Value                 []byte // big-endian, minimal length
	Input                 []byte
	GasLimit              uint64
	GasUsed               uint64
	GasPrice              []byte
	TransactionType       uint8
	MaxPriorityFeePerGas  []byte
	MaxFeePerGas          []byte
	Success               bool
	ChainID               uint64
}

// WriteRows snappy-compresses and writes rows to path (used by the gap-fill
// step once the external extractor has produced them).
func WriteRows(path string, rows []Row) error {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(rows)))
	for _, r := range rows {
		buf = encodeRow(buf, r)
	}
	compressed := snappy.Encode(nil, buf)
	return os.WriteFile(path, compressed, 0o644)
}

// ReadRows decompresses and decodes every row in path.
func ReadRows(path string) ([]Row, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	buf, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, fmt.Errorf("columnar: decode %s: %w", path, err)
	}
	var rows []Row
	n, pos := binary.Uvarint(buf)
	if pos <= 0 {
		return nil, fmt.Errorf("columnar: corrupt row count in %s", path)
	}
	buf = buf[pos:]
	for i := uint64(0); i < n; i++ {
		var row Row
		var err error
		row, buf, err = decodeRow(buf)
		if err != nil {
			return nil, fmt.Errorf("columnar: corrupt row %d in %s: %w", i, path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FilterByRange returns only the rows whose BlockNumber falls within
// [start,end] — a file covering 100-200 contributes only matching rows.
func FilterByRange(rows []Row, start, end uint64) []Row {
	var out []Row
	for _, r := range rows {
		if r.BlockNumber >= start && r.BlockNumber <= end {
			out = append(out, r)
		}
	}
	return out
}

func appendUvarint(buf []byte, v uint64) []byte {
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, v)
	return append(buf, tmp[:n]...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readBytes(buf []byte) ([]byte, []byte, error) {
	n, pos := binary.Uvarint(buf)
	if pos <= 0 {
		return nil, nil, fmt.Errorf("bad length varint")
	}
	buf = buf[pos:]
	if uint64(len(buf)) < n {
		return nil, nil, fmt.Errorf("truncated buffer")
	}
	return buf[:n], buf[n:], nil
}

func encodeRow(buf []byte, r Row) []byte {
	buf = appendUvarint(buf, r.BlockNumber)
	buf = appendUvarint(buf, uint64(r.TransactionIndex))
	buf = append(buf, r.TransactionHash[:]...)
	buf = appendUvarint(buf, r.Nonce)
	buf = append(buf, r.From[:]...)
	buf = append(buf, r.To[:]...)
	if r.HasTo {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendBytes(buf, r.Value)
	buf = appendBytes(buf, r.Input)
	buf = appendUvarint(buf, r.GasLimit)
	buf = appendUvarint(buf, r.GasUsed)
	buf = appendBytes(buf, r.GasPrice)
	buf = append(buf, r.TransactionType)
	buf = appendBytes(buf, r.MaxPriorityFeePerGas)
	buf = appendBytes(buf, r.MaxFeePerGas)
	if r.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUvarint(buf, r.ChainID)
	return buf
}

func decodeRow(buf []byte) (Row, []byte, error) {
	var r Row
	var err error

	readU := func() (uint64, error) {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return 0, fmt.Errorf("bad varint")
		}
		buf = buf[n:]
		return v, nil
	}

	if r.BlockNumber, err = readU(); err != nil {
		return r, buf, err
	}
	var idx uint64
	if idx, err = readU(); err != nil {
		return r, buf, err
	}
	r.TransactionIndex = uint32(idx)

	if len(buf) < 32 {
		return r, buf, fmt.Errorf("truncated hash")
	}
	copy(r.TransactionHash[:], buf[:32])
	buf = buf[32:]

	if r.Nonce, err = readU(); err != nil {
		return r, buf, err
	}

	if len(buf) < 40 {
		return r, buf, fmt.Errorf("truncated addresses")
	}
	copy(r.From[:], buf[:20])
	copy(r.To[:], buf[20:40])
	buf = buf[40:]

	if len(buf) < 1 {
		return r, buf, fmt.Errorf("truncated hasTo")
	}
	r.HasTo = buf[0] == 1
	buf = buf[1:]

	if r.Value, buf, err = readBytes(buf); err != nil {
		return r, buf, err
	}
	if r.Input, buf, err = readBytes(buf); err != nil {
		return r, buf, err
	}
	if r.GasLimit, err = readU(); err != nil {
		return r, buf, err
	}
	if r.GasUsed, err = readU(); err != nil {
		return r, buf, err
	}
	if r.GasPrice, buf, err = readBytes(buf); err != nil {
		return r, buf, err
	}
	if len(buf) < 1 {
		return r, buf, fmt.Errorf("truncated tx type")
	}
	r.TransactionType = buf[0]
	buf = buf[1:]
	if r.MaxPriorityFeePerGas, buf, err = readBytes(buf); err != nil {
		return r, buf, err
	}
	if r.MaxFeePerGas, buf, err = readBytes(buf); err != nil {
		return r, buf, err
	}
	if len(buf) < 1 {
		return r, buf, fmt.Errorf("truncated success")
	}
	r.Success = buf[0] == 1
	buf = buf[1:]
	if r.ChainID, err = readU(); err != nil {
		return r, buf, err
	}
	return r, buf, nil
}
