// Package merge reconciles several captures of the same measurement session
// into one canonical capture.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"labdigitizer/internal/capture"
	"labdigitizer/internal/config"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/parser"
	"labdigitizer/internal/port"
)

// Merger merges captures. When an oracle is configured and assisted merging is
// enabled it first asks the oracle for a reconciliation and validates the
// answer; anything it cannot verify falls back to Deterministic.
type Merger struct {
	oracle   port.Oracle
	assisted bool
	timeout  time.Duration
	logger   *zap.Logger
}

// NewMerger creates a Merger. oracle may be nil, which disables the assisted path.
func NewMerger(oracle port.Oracle, cfg config.MergeConfig, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		oracle:   oracle,
		assisted: cfg.Assisted && oracle != nil,
		timeout:  cfg.Timeout(),
		logger:   logger,
	}
}

// Merge returns the canonical capture. A single capture is returned unchanged;
// no captures yield an empty tabular capture. Merge never fails.
func (m *Merger) Merge(ctx context.Context, captures []*domain.Capture) *domain.Capture {
	switch len(captures) {
	case 0:
		return &domain.Capture{Format: domain.FormatTabular, Confidence: domain.ConfidenceUnknown}
	case 1:
		return captures[0]
	}

	if m.assisted {
		merged, err := m.reconcile(ctx, captures)
		if err == nil {
			m.logger.Info("assisted merge accepted",
				zap.Int("captures", len(captures)),
				zap.Int("records", len(merged.Records)),
			)
			return merged
		}
		m.logger.Warn("assisted merge rejected, using deterministic merge",
			zap.Int("captures", len(captures)),
			zap.Error(err),
		)
	}
	return Deterministic(captures)
}

func (m *Merger) reconcile(ctx context.Context, captures []*domain.Capture) (merged *domain.Capture, err error) {
	defer func() {
		if r := recover(); r != nil {
			merged = nil
			err = fmt.Errorf("%w: panic: %v", domain.ErrReconciliationUnavailable, r)
		}
	}()

	if hasUnidentified(captures) {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconciliationUnavailable, errUnidentified)
	}

	prompt, err := parser.BuildReconcilePrompt(captures)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconciliationUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.oracle.Complete(ctx, port.OracleRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconciliationUnavailable, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrReconciliationUnavailable)
	}

	payload, err := parser.ExtractPayload(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconciliationUnavailable, err)
	}
	merged, err = capture.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconciliationUnavailable, err)
	}
	if err := Validate(merged, captures); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReconciliationUnavailable, err)
	}

	fallback := Deterministic(captures)
	if merged.Instrument == "" {
		merged.Instrument = fallback.Instrument
	}
	if merged.Commentary == "" {
		merged.Commentary = fallback.Commentary
	}
	merged.Confidence = fallback.Confidence
	sort.SliceStable(merged.Records, func(i, j int) bool {
		a, aok := merged.Records[i].Identifier()
		b, bok := merged.Records[j].Identifier()
		return aok && bok && CompareIdentifiers(a, b) < 0
	})
	return merged, nil
}

// Validation failures for an advisory merge result.
var (
	errEmptyResult   = errors.New("reconciled result has no records")
	errLayoutChanged = errors.New("reconciled result changed the capture layout")
	errMissingID     = errors.New("reconciled record has no identifier")
	errDuplicateID   = errors.New("reconciled result repeats an identifier")
	errLostRecords   = errors.New("reconciled result dropped identifiers")
	errUnknownID     = errors.New("reconciled result invented an identifier")
	errUnidentified  = errors.New("inputs hold records without an identifier")
)

// Validate checks an advisory merge result against its inputs: it must keep
// the layout, list each identifier once, keep every input identifier and
// introduce none of its own. Inputs holding unidentified records are always
// rejected.
func Validate(merged *domain.Capture, inputs []*domain.Capture) error {
	if merged == nil || len(merged.Records) == 0 {
		return errEmptyResult
	}
	if merged.Format != mergedFormat(inputs) {
		return errLayoutChanged
	}

	known := map[string]bool{}
	for _, c := range inputs {
		for _, r := range c.Records {
			id, ok := r.Identifier()
			if !ok {
				return errUnidentified
			}
			known[identifierKey(id)] = true
		}
	}

	seen := map[string]bool{}
	for _, r := range merged.Records {
		id, ok := r.Identifier()
		if !ok {
			return errMissingID
		}
		k := identifierKey(id)
		if seen[k] {
			return fmt.Errorf("%w: %s", errDuplicateID, id.String())
		}
		if !known[k] {
			return fmt.Errorf("%w: %s", errUnknownID, id.String())
		}
		seen[k] = true
	}
	if len(seen) < len(known) {
		return fmt.Errorf("%w: kept %d of %d", errLostRecords, len(seen), len(known))
	}
	return nil
}

func hasUnidentified(captures []*domain.Capture) bool {
	for _, c := range captures {
		for _, r := range c.Records {
			if _, ok := r.Identifier(); !ok {
				return true
			}
		}
	}
	return false
}
