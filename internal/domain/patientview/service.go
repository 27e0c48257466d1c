package patientview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/crosscare/exchange/pkg/cdm"
)

// DefaultParseTimeout bounds the whole multi-document assembly. Documents
// still in flight when it expires are dropped with a warning; completed
// fragments are merged and returned.
const DefaultParseTimeout = 10 * time.Second

// defaultConcurrency bounds the per-request extraction fan-out.
const defaultConcurrency = 4

// ParseFunc parses one document format into a view fragment. Satisfied by
// the CDA extractor's Extract and the FHIR classifier's Classify.
type ParseFunc func(ctx context.Context, doc cdm.ClinicalDocument) (*cdm.PatientClinicalView, error)

// Service orchestrates parsing, classification, and merging for a set of
// source documents belonging to one patient.
type Service struct {
	cda     ParseFunc
	fhir    ParseFunc
	timeout time.Duration
	log     zerolog.Logger
}

// NewService wires the format parsers into an assembly service. A zero
// timeout selects DefaultParseTimeout.
func NewService(cdaParse, fhirParse ParseFunc, timeout time.Duration, log zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}
	return &Service{cda: cdaParse, fhir: fhirParse, timeout: timeout, log: log}
}

// Assemble parses every document concurrently and merges the fragments into
// one deduplicated view. A document that fails to parse contributes a
// warning, not an error; Assemble itself fails only when no document could
// be processed at all.
func (s *Service) Assemble(ctx context.Context, docs []cdm.ClinicalDocument) (*cdm.PatientClinicalView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fragments := make([]*cdm.PatientClinicalView, len(docs))
	failures := make([]cdm.Warning, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			frag, err := s.parseOne(gctx, doc)
			if err != nil {
				failures[i] = classifyFailure(doc, err)
				s.log.Warn().
					Str("document", doc.ID.String()).
					Err(err).
					Msg("document dropped from assembly")
				return nil
			}
			fragments[i] = frag
			return nil
		})
	}
	_ = g.Wait()

	view := Merge(fragments...)
	parsed := 0
	for _, frag := range fragments {
		if frag != nil {
			parsed++
		}
	}
	for _, w := range failures {
		if w.Code != "" {
			view.Warnings = append(view.Warnings, w)
		}
	}
	if parsed == 0 && len(docs) > 0 {
		return nil, fmt.Errorf("no document could be parsed: %w", cdm.ErrMalformedDocument)
	}
	SortRecords(view)

	s.log.Info().
		Int("documents", len(docs)).
		Int("parsed", parsed).
		Int("records", view.RecordCount()).
		Int("warnings", len(view.Warnings)).
		Msg("patient view assembled")
	return view, nil
}

// parseOne routes a document to its format parser, sniffing the format from
// content when it is not declared.
func (s *Service) parseOne(ctx context.Context, doc cdm.ClinicalDocument) (*cdm.PatientClinicalView, error) {
	switch cdm.DetectFormat(doc.Format, doc.Content) {
	case cdm.FormatCDA:
		return s.cda(ctx, doc)
	case cdm.FormatFHIRBundle:
		return s.fhir(ctx, doc)
	default:
		return nil, fmt.Errorf("%w: format not recognized", cdm.ErrMalformedDocument)
	}
}

// classifyFailure turns a per-document parse error into the matching warning.
func classifyFailure(doc cdm.ClinicalDocument, err error) cdm.Warning {
	code := cdm.WarnMalformed
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = cdm.WarnTimeout
	}
	return cdm.Warning{
		Code:    code,
		Message: err.Error(),
		Source:  doc.ID.String(),
	}
}
