// Package export writes breath history to Parquet files for offline analysis.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/parquet-go/parquet-go"
)

// #region rows
// BreathRow is one breath_cycle record flattened for columnar storage.
type BreathRow struct {
	SessionID string    `parquet:"session_id,snappy"`
	Dyad      string    `parquet:"dyad_name,snappy"`
	Timestamp time.Time `parquet:"timestamp,snappy"`
	Cycle     int64     `parquet:"breath_cycle,snappy"`
	InputText string    `parquet:"input_text,snappy"`
	Tag       *string   `parquet:"tag,optional,snappy"`
	Reason    string    `parquet:"reason,snappy"`
	Elapsed   float64   `parquet:"elapsed_seconds,snappy"`
	Delta     float64   `parquet:"score_delta,snappy"`
	OldScore  float64   `parquet:"old_coherence,snappy"`
	RawScore  float64   `parquet:"raw_coherence,snappy"`
	NewScore  float64   `parquet:"new_coherence,snappy"`
	History   float64   `parquet:"history,snappy"`
	Presence  float64   `parquet:"presence_bonus,snappy"`
	Regime    string    `parquet:"recovery_mode,snappy"`

	// Oscillation columns are null outside a session.
	OscillationStep *int32   `parquet:"oscillation_breath,optional,snappy"`
	ExpectedScore   *float64 `parquet:"expected_coherence,optional,snappy"`
	BlendedScore    *float64 `parquet:"blended_coherence,optional,snappy"`
}

// Rows flattens the breath records, skipping every other kind.
func Rows(records []logging.Record) []BreathRow {
	var out []BreathRow
	for _, rec := range records {
		b := rec.Breath
		if rec.Kind != logging.KindBreath || b == nil {
			continue
		}
		row := BreathRow{
			SessionID: rec.SessionID,
			Dyad:      rec.Dyad,
			Timestamp: rec.Timestamp,
			Cycle:     int64(b.Cycle),
			InputText: b.InputText,
			Reason:    strings.Join(b.Reasons, ","),
			Elapsed:   b.ElapsedSeconds,
			Delta:     b.ScoreDelta,
			OldScore:  b.OldScore,
			RawScore:  b.RawScore,
			NewScore:  b.NewScore,
			History:   b.History,
			Presence:  b.Presence,
			Regime:    b.Regime,
		}
		if b.Tag != "" {
			tag := b.Tag
			row.Tag = &tag
		}
		if o := b.Oscillation; o != nil {
			step := int32(o.Step)
			expected, blended := o.ExpectedScore, o.BlendedScore
			row.OscillationStep = &step
			row.ExpectedScore = &expected
			row.BlendedScore = &blended
		}
		out = append(out, row)
	}
	return out
}

// #endregion rows

// #region write
// Write encodes rows as Parquet to w.
func Write(w io.Writer, rows []BreathRow) error {
	writer := parquet.NewGenericWriter[BreathRow](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// WriteFile writes the breath records to a Parquet file and returns the row count.
func WriteFile(path string, records []logging.Record) (int, error) {
	rows := Rows(records)

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(file, rows); err != nil {
		_ = file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	return len(rows), nil
}

// #endregion write
