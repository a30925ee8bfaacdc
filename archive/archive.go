// Package archive serializes partitions of light-curve records to disk and reads them back.
//
// A partition file is JSON lines. The first line is a Header naming the columns; every
// following line is one record encoded as an array in column order:
//
//	[m1, m2, l1, l2, [time...], [g...], [r...], [i...], [z...]]
//
// Files ending in .zst are zstd compressed.
package archive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
)

// Format selects the on-disk encoding of a partition.
type Format string

const (
	FormatJSONL     Format = "jsonl"
	FormatJSONLZstd Format = "jsonl.zst"
)

// ParseFormat accepts "jsonl", "jsonl.zst" and "zst"; the empty string means jsonl.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "jsonl":
		return FormatJSONL, nil
	case "jsonl.zst", "zst", "zstd":
		return FormatJSONLZstd, nil
	}
	return "", kerrors.Configuration("unknown output format %q", s)
}

// Filename returns the artifact name for the partition at index: {base}_{index}.{format}
func Filename(base string, index int, format Format) string {
	return fmt.Sprintf("%s_%d.%s", base, index, format)
}

// fixedColumns precede the band columns in every row.
var fixedColumns = []string{"m1", "m2", "l1", "l2", "time"}

// Header is the first line of every partition file.
type Header struct {
	RunID     string    `json:"run_id"`
	Partition int       `json:"partition"` // -1 for combined files
	Rows      int       `json:"rows"`
	Columns   []string  `json:"columns"`
	Created   time.Time `json:"created"`
	Sources   []string  `json:"sources,omitempty"`
}

// Bands returns the band column names of the header.
func (h Header) Bands() []string {
	if len(h.Columns) <= len(fixedColumns) {
		return nil
	}
	return h.Columns[len(fixedColumns):]
}

// Columns returns the column list for records carrying the given bands.
func Columns(bands []string) []string {
	cols := make([]string, 0, len(fixedColumns)+len(bands))
	cols = append(cols, fixedColumns...)
	return append(cols, bands...)
}

func encodeRow(rec lightcurve.Record) []interface{} {
	row := make([]interface{}, 0, len(fixedColumns)+len(rec.Bands))
	row = append(row, rec.M1, rec.M2, rec.L1, rec.L2, rec.Time)
	for _, b := range rec.Bands {
		row = append(row, b.Mag)
	}
	return row
}

func decodeRow(raw []json.RawMessage, bands []string) (lightcurve.Record, error) {
	if len(raw) != len(fixedColumns)+len(bands) {
		return lightcurve.Record{}, fmt.Errorf("row has %d columns, header declares %d", len(raw), len(fixedColumns)+len(bands))
	}
	var rec lightcurve.Record
	for i, dst := range []*float64{&rec.M1, &rec.M2, &rec.L1, &rec.L2} {
		if err := json.Unmarshal(raw[i], dst); err != nil {
			return rec, fmt.Errorf("column %s: %w", fixedColumns[i], err)
		}
	}
	if err := json.Unmarshal(raw[4], &rec.Time); err != nil {
		return rec, fmt.Errorf("column time: %w", err)
	}
	rec.Bands = make([]lightcurve.BandCurve, len(bands))
	for i, name := range bands {
		rec.Bands[i].Name = name
		if err := json.Unmarshal(raw[len(fixedColumns)+i], &rec.Bands[i].Mag); err != nil {
			return rec, fmt.Errorf("column %s: %w", name, err)
		}
		if len(rec.Bands[i].Mag) != len(rec.Time) {
			return rec, fmt.Errorf("column %s has %d samples, time has %d", name, len(rec.Bands[i].Mag), len(rec.Time))
		}
	}
	return rec, nil
}

// Write serializes the records to path in one pass. The file is written under a temporary
// name and renamed into place, so a failed write never leaves a partial artifact behind.
// All records must carry the same bands.
func Write(path string, h Header, recs []lightcurve.Record) (err error) {
	if len(h.Columns) == 0 {
		var bands []string
		if len(recs) > 0 {
			bands = recs[0].BandColumns()
		}
		h.Columns = Columns(bands)
	}
	h.Rows = len(recs)
	if h.Created.IsZero() {
		h.Created = time.Now().UTC()
	}
	nBands := len(h.Bands())
	for i, rec := range recs {
		if len(rec.Bands) != nBands {
			return kerrors.DataFormat("record %d has %d bands, header declares %d", i, len(rec.Bands), nBands)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return kerrors.IO(err, path)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = encodeTo(f, compressed(path), h, recs); err != nil {
		return kerrors.IO(err, path)
	}
	if err = f.Close(); err != nil {
		return kerrors.IO(err, path)
	}
	if err = os.Rename(tmp, path); err != nil {
		return kerrors.IO(err, path)
	}
	return nil
}

func compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

func encodeTo(w io.Writer, zst bool, h Header, recs []lightcurve.Record) error {
	bw := bufio.NewWriter(w)
	var out io.Writer = bw
	var zw *zstd.Encoder
	if zst {
		var err error
		zw, err = zstd.NewWriter(bw, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return err
		}
		out = zw
	}

	enc := json.NewEncoder(out)
	if err := enc.Encode(h); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := enc.Encode(encodeRow(rec)); err != nil {
			return err
		}
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read loads a partition file written by Write or Combine.
func Read(path string) (h Header, recs []lightcurve.Record, err error) {
	err = scan(path, func(hdr Header) error {
		h = hdr
		recs = make([]lightcurve.Record, 0, hdr.Rows)
		return nil
	}, func(rec lightcurve.Record) (bool, error) {
		recs = append(recs, rec)
		return true, nil
	})
	if err != nil {
		return Header{}, nil, err
	}
	if len(recs) != h.Rows {
		return Header{}, nil, kerrors.DataFormat("%s: header declares %d rows, found %d", path, h.Rows, len(recs))
	}
	return h, recs, nil
}

// ReadHeader returns the header and the first record of a partition file without
// decoding the rest. The first record is the zero value when the file holds no rows.
func ReadHeader(path string) (h Header, first lightcurve.Record, err error) {
	err = scan(path, func(hdr Header) error {
		h = hdr
		return nil
	}, func(rec lightcurve.Record) (bool, error) {
		first = rec
		return false, nil
	})
	return h, first, err
}

// scan streams the header and then each record to the callbacks until onRecord returns false.
func scan(path string, onHeader func(Header) error, onRecord func(lightcurve.Record) (bool, error)) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return kerrors.WithCode(kerrors.CodeIO, err, fmt.Sprintf("opening %s", path))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = kerrors.WithCode(kerrors.CodeIO, cerr, fmt.Sprintf("closing %s", path))
		}
	}()

	var in io.Reader = bufio.NewReader(f)
	if compressed(path) {
		zr, zerr := zstd.NewReader(in, zstd.WithDecoderConcurrency(1))
		if zerr != nil {
			return kerrors.WithCode(kerrors.CodeDataFormat, zerr, fmt.Sprintf("decompressing %s", path))
		}
		defer zr.Close()
		in = zr
	}

	dec := json.NewDecoder(in)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("%s: reading header", path))
	}
	if len(h.Columns) < len(fixedColumns) {
		return kerrors.DataFormat("%s: header has %d columns, need at least %d", path, len(h.Columns), len(fixedColumns))
	}
	if err := onHeader(h); err != nil {
		return err
	}

	bands := h.Bands()
	for i := 0; ; i++ {
		var raw []json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				return nil
			}
			return kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("%s: row %d", path, i))
		}
		rec, err := decodeRow(raw, bands)
		if err != nil {
			return kerrors.WithCode(kerrors.CodeDataFormat, err, fmt.Sprintf("%s: row %d", path, i))
		}
		more, err := onRecord(rec)
		if err != nil || !more {
			return err
		}
	}
}
