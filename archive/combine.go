package archive

import (
	"time"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
)

// Combine concatenates partition files, in the order given, into a single file at out.
// Every input must declare the same columns. The combined header keeps the run ID when all
// inputs share one and lists the inputs as sources.
func Combine(out string, inputs []string) (Header, error) {
	if len(inputs) == 0 {
		return Header{}, kerrors.Configuration("nothing to combine")
	}

	var (
		combined Header
		recs     []lightcurve.Record
	)
	for i, path := range inputs {
		h, part, err := Read(path)
		if err != nil {
			return Header{}, err
		}
		if i == 0 {
			combined = Header{RunID: h.RunID, Partition: -1, Columns: h.Columns}
		} else {
			if !sameColumns(combined.Columns, h.Columns) {
				return Header{}, kerrors.DataFormat("%s has columns %v, expected %v", path, h.Columns, combined.Columns)
			}
			if h.RunID != combined.RunID {
				combined.RunID = ""
			}
		}
		recs = append(recs, part...)
	}
	combined.Sources = append([]string(nil), inputs...)
	combined.Created = time.Now().UTC()

	if err := Write(out, combined, recs); err != nil {
		return Header{}, err
	}
	combined.Rows = len(recs)
	return combined, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
