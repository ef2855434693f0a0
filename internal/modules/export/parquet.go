// Package export writes simulation results to Parquet.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/aristath/frontier/internal/modules/frontier"
)

// Metadata keys stored in the Parquet footer.
const (
	MetaRunID        = "run_id"
	MetaSymbols      = "symbols"
	MetaRiskFreeRate = "risk_free_rate"
)

// PortfolioRecord is the Parquet schema of one sampled portfolio. Weights are
// in the column order given by the "symbols" metadata key.
type PortfolioRecord struct {
	Index      int64     `parquet:"index"`
	Return     float64   `parquet:"return"`
	Volatility float64   `parquet:"volatility"`
	Sharpe     *float64  `parquet:"sharpe,optional"`
	Weights    []float64 `parquet:"weights,list"`
}

// Records converts the sampled table, keeping sampling order.
func Records(result *frontier.SimulationResult) []PortfolioRecord {
	records := make([]PortfolioRecord, len(result.Portfolios))
	for i, p := range result.Portfolios {
		records[i] = PortfolioRecord{
			Index:      int64(p.Index),
			Return:     p.Return,
			Volatility: p.Volatility,
			Sharpe:     p.Sharpe.Ptr(),
			Weights:    p.Weights,
		}
	}
	return records
}

// Write encodes the sampled table of result to w.
func Write(w io.Writer, result *frontier.SimulationResult) error {
	err := parquet.Write(w, Records(result),
		parquet.KeyValueMetadata(MetaRunID, result.RunID),
		parquet.KeyValueMetadata(MetaSymbols, strings.Join(result.Symbols, ",")),
		parquet.KeyValueMetadata(MetaRiskFreeRate, strconv.FormatFloat(result.RiskFreeRate, 'g', -1, 64)),
	)
	if err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	return nil
}

// WriteFile writes the sampled table of result to path, creating parent
// directories as needed.
func WriteFile(path string, result *frontier.SimulationResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads records written by WriteFile.
func ReadFile(path string) ([]PortfolioRecord, error) {
	records, err := parquet.ReadFile[PortfolioRecord](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}
