// Package gridstream provides resumable, batched columnar reads over
// dimensioned array storage.
//
// A Reader drives one query over a sparse or dense array to completion in
// buffer-sized batches, resuming transparently when a batch fills up:
//
//   - Columnar batches in Apache Arrow format (zero-copy over owned buffers)
//   - Adaptive buffer sizing: byte budgets with grow-and-retry when a single
//     row does not fit
//   - Per-dimension point and range selection, attribute predicates pushed
//     down to the engine
//   - Row-major, column-major or engine-native result order
//   - Timestamp-range reads over fragmented writes
//   - Pluggable storage engines; the bundled engine serves in-memory arrays
//     and compressed snapshots on local disk, S3 or any mounted blob store
//
// # Quick Start
//
// Register an array and stream it:
//
//	e := engine.NewEngine()
//	e.Registry().Register("cells", arr)
//
//	r, err := gridstream.Open(ctx, "mem://cells",
//	    gridstream.WithEngine(e),
//	    gridstream.WithColumns("obs_id", "value"),
//	    gridstream.WithRanges("obs_id", schema.Range{Min: schema.Int(0), Max: schema.Int(999)}),
//	)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    batch, err := r.ReadNext(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    process(batch)
//	}
//
// # Buffer Budgets
//
// Buffers start at WithInitialByteBudget split across the selected columns.
// When the engine cannot place a single row, the starved buffers double (or
// grow by WithGrowthFactor) until the row fits or WithMaxByteBudget is
// reached, which fails the read with ErrRowTooLarge. Every batch surfaced to
// the caller has at least one row, except a first batch over an empty result.
package gridstream
