package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bob-anderson-ok/kilonovagen/archive"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

// work generates every row of one partition in order, then writes the partition once.
// Only the reporting worker prints progress.
func (h *Harness) work(ctx context.Context, p params.Partition, reporter bool) Status {
	start := time.Now()
	st := Status{
		Index: p.Index,
		File:  archive.Filename(h.cfg.OutputBase, p.Index, h.cfg.Format),
	}
	log := h.log.With(zap.Int("partition", p.Index))
	log.Debug("worker started", zap.Int("rows", p.Len()), zap.Int("offset", p.Offset))

	n := p.Len()
	recs := make([]lightcurve.Record, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			// Left uncoded so a sibling's root cause decides the run's error kind.
			st.Err = fmt.Errorf("partition %d stopped before row %d: %w", p.Index, p.Offset+i, err)
			st.Elapsed = time.Since(start)
			log.Warn("worker cancelled", zap.Int("completed", i))
			return st
		}

		row := p.Row(i)
		rec, err := h.gen.Generate(row.M1, row.M2, row.L1, row.L2)
		if err != nil {
			st.Err = kerrors.Wrapf(err, "partition %d row %d (m1=%g m2=%g l1=%g l2=%g)",
				p.Index, p.Offset+i, row.M1, row.M2, row.L1, row.L2)
			st.Elapsed = time.Since(start)
			log.Error("worker failed", zap.Error(st.Err))
			return st
		}
		recs = append(recs, rec)

		if reporter && ((i+1)%h.cfg.ReportEvery == 0 || i+1 == n) {
			fmt.Fprintf(h.progress, "\r%.3f%% finished", 100*float64(i+1)/float64(n))
		}
	}
	if reporter && n > 0 {
		fmt.Fprintln(h.progress)
	}

	hdr := archive.Header{
		RunID:     h.runID,
		Partition: p.Index,
		Columns:   archive.Columns(h.gen.BandColumns()),
	}
	if err := archive.Write(st.File, hdr, recs); err != nil {
		st.Err = err
		st.Elapsed = time.Since(start)
		log.Error("could not write partition", zap.Error(err))
		return st
	}
	st.Rows = len(recs)

	if h.sink != nil {
		key, err := h.sink.Put(ctx, st.File)
		if err != nil {
			st.Err = err
			st.Elapsed = time.Since(start)
			log.Error("could not upload partition", zap.Error(err))
			return st
		}
		st.ObjectKey = key
	}

	st.Elapsed = time.Since(start)
	log.Info("partition written",
		zap.String("file", st.File),
		zap.Int("rows", st.Rows),
		zap.Duration("took", st.Elapsed))
	return st
}
