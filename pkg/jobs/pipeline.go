package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"github.com/travigo/tsiconverter/pkg/canonical"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/formats"
	gtfsstatic "github.com/travigo/tsiconverter/pkg/gtfs"
	"github.com/travigo/tsiconverter/pkg/gtfsrt"
	"github.com/travigo/tsiconverter/pkg/validation"
	"google.golang.org/protobuf/proto"
)

// process runs one job through parse, validate, encode and package. Between
// stages it gives up as soon as the job was cancelled or timed out.
func (o *Orchestrator) process(ctx context.Context, jobID string) {
	logger := log.With().Str("job", jobID).Logger()

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().Interface("panic", recovered).Bytes("stack", debug.Stack()).Msg("Job worker panicked")
			o.fail(jobID, internalFailure())
		}
	}()

	request, settings, exists := o.registry.work(jobID)
	if !exists {
		logger.Warn().Msg("Dequeued job is no longer registered")
		return
	}
	logger = logger.With().Str("tenant", request.TenantID).Str("format", string(request.Target)).Logger()

	if !o.advance(jobID, StateParsing) {
		return
	}
	document, err := canonical.ParseReader(bytes.NewReader(request.Payload), request.Charset)
	o.registry.releasePayload(jobID)
	if err != nil {
		o.fail(jobID, parseFailure(err))
		return
	}

	if !o.advance(jobID, StateValidating) {
		return
	}
	report := o.engine.Validate(document, request.Target.ValidationFormat(), settings.Level)
	o.registry.addWarnings(jobID, issues(report.Advisory()))
	if !report.Valid() {
		o.fail(jobID, validationFailure(report))
		return
	}

	if !o.advance(jobID, StateEncoding) {
		return
	}
	if settings.Edifact.Reference == "" {
		settings.Edifact.Reference = jobReference(jobID)
	}
	files, err := encode(document, request.Target, settings)
	if err != nil {
		if failure := encodeFailure(err); failure != nil {
			o.fail(jobID, failure)
			return
		}
		logger.Error().Err(err).Msg("Encoding failed")
		o.fail(jobID, internalFailure())
		return
	}

	if settings.PostValidate {
		report := validateOutput(request.Target, files, settings.Level)
		o.registry.addWarnings(jobID, issues(report.Advisory()))
		if !report.Valid() {
			o.fail(jobID, validationFailure(report))
			return
		}
	}

	if !o.advance(jobID, StatePackaging) {
		return
	}
	artifact, err := o.pack(jobID, request, settings, files)
	if err != nil {
		logger.Error().Err(err).Msg("Packaging failed")
		o.fail(jobID, internalFailure())
		return
	}

	if err := o.artifacts.Put(ctx, artifact, o.defaults.ArtifactTTL); err != nil {
		logger.Error().Err(err).Msg("Failed to store artifact")
		o.fail(jobID, internalFailure())
		return
	}

	if !o.advance(jobID, StateCompleted) {
		// finished after a cancel or timeout, the output is not served
		if err := o.artifacts.Delete(ctx, jobID); err != nil {
			logger.Error().Err(err).Msg("Failed to discard artifact")
		}
		return
	}

	logger.Info().Strs("files", artifact.Names()).Msg("Job completed")
}

// advance reports whether the job is still running after moving it on
func (o *Orchestrator) advance(jobID string, state State) bool {
	status, err := o.registry.Transition(jobID, state)
	if err != nil {
		log.Debug().Err(err).Str("job", jobID).Str("state", string(status.State)).Msg("Job stopped between stages")
		return false
	}

	log.Debug().Str("job", jobID).Str("state", string(state)).Int("progress", status.Progress).Msg("Job advanced")

	if o.stageHook != nil {
		o.stageHook(jobID, state)
	}

	return true
}

func (o *Orchestrator) fail(jobID string, failure *Failure) {
	status, err := o.registry.Fail(jobID, failure)
	if err != nil {
		return
	}

	log.Info().
		Str("job", jobID).
		Str("tenant", status.TenantID).
		Str("kind", string(failure.Kind)).
		Int("errors", len(failure.Errors)).
		Msg("Job failed")
}

// jobReference gives every interchange of the orchestrator its own control reference
func jobReference(jobID string) string {
	reference := strings.ToUpper(strings.ReplaceAll(jobID, "-", ""))
	if len(reference) > 12 {
		reference = reference[:12]
	}

	return reference
}

func edifactFileName(messageType edifact.MessageType) string {
	if messageType == edifact.MessageTypeTSDUPD {
		return "tsdupd.edi"
	}

	return "skdupd.edi"
}

func realtimeFileName(feedType gtfsrt.FeedType) string {
	return fmt.Sprintf("%s.pb", feedType)
}

func encode(document *canonical.Document, target formats.Target, settings Settings) (map[string][]byte, error) {
	switch target {
	case formats.TargetEdifactSKDUPD, formats.TargetEdifactTSDUPD:
		messageType := edifact.MessageTypeSKDUPD
		if target == formats.TargetEdifactTSDUPD {
			messageType = edifact.MessageTypeTSDUPD
		}

		message, err := edifact.Encode(document, messageType, settings.Edifact)
		if err != nil {
			return nil, err
		}

		return map[string][]byte{edifactFileName(messageType): message.Bytes()}, nil
	case formats.TargetGTFS:
		bundle, err := gtfsstatic.Encode(document, gtfsstatic.Options{FeedVersion: settings.FeedVersion})
		if err != nil {
			return nil, err
		}

		return bundle.Files, nil
	case formats.TargetGTFSRealtime:
		feed, err := gtfsrt.Encode(document, settings.FeedType, settings.AsOf)
		if err != nil {
			return nil, err
		}

		data, err := gtfsrt.Marshal(feed)
		if err != nil {
			return nil, err
		}

		return map[string][]byte{realtimeFileName(settings.FeedType): data}, nil
	}

	return nil, ErrUnsupportedFormat
}

// validateOutput checks the serialized output the way a consumer would read it
func validateOutput(target formats.Target, files map[string][]byte, level formats.Level) validation.Report {
	switch target {
	case formats.TargetEdifactSKDUPD:
		return validation.ValidateEDIFACT(string(files[edifactFileName(edifact.MessageTypeSKDUPD)]), level)
	case formats.TargetEdifactTSDUPD:
		return validation.ValidateEDIFACT(string(files[edifactFileName(edifact.MessageTypeTSDUPD)]), level)
	case formats.TargetGTFS:
		return validation.ValidateGTFS(files, level)
	}

	report := validation.Report{Format: target.ValidationFormat(), Level: level}
	for name, data := range files {
		if err := proto.Unmarshal(data, &gtfs.FeedMessage{}); err != nil {
			report.Errors = append(report.Errors, validation.Finding{
				Code:     "MalformedFeed",
				Message:  err.Error(),
				Severity: validation.SeverityError,
				Locator:  validation.Locator{File: name},
			})
		}
	}

	return report
}

func (o *Orchestrator) pack(jobID string, request Request, settings Settings, files map[string][]byte) (*Artifact, error) {
	artifact := &Artifact{
		JobID:     jobID,
		TenantID:  request.TenantID,
		Target:    request.Target,
		Files:     files,
		CreatedAt: o.now(),
	}

	if settings.Package == PackageZip {
		bundle := &gtfsstatic.Bundle{Files: files}

		zipped, err := bundle.Zip()
		if err != nil {
			return nil, err
		}

		artifact.Files = make(map[string][]byte, len(files)+1)
		for name, data := range files {
			artifact.Files[name] = data
		}
		artifact.Files[gtfsstatic.ZipFile] = zipped
	}

	return artifact, nil
}

func issues(findings []validation.Finding) []Issue {
	result := make([]Issue, 0, len(findings))
	for _, finding := range findings {
		result = append(result, Issue{
			Code:     finding.Code,
			Severity: string(finding.Severity),
			Message:  finding.Message,
			Location: finding.Locator.String(),
		})
	}

	return result
}

func parseFailure(err error) *Failure {
	return &Failure{
		Kind:    FailureParse,
		Message: "input could not be parsed",
		Errors:  issues(validation.ParseFindings(err)),
	}
}

func validationFailure(report validation.Report) *Failure {
	return &Failure{
		Kind:    FailureValidation,
		Message: fmt.Sprintf("validation found %d errors", len(report.Errors)),
		Errors:  issues(report.Errors),
	}
}

// encodeFailure is nil for errors that are not the fault of the input
func encodeFailure(err error) *Failure {
	var edifactError *edifact.EncodeError
	if errors.As(err, &edifactError) {
		location := edifactError.Entity
		if edifactError.ID != "" {
			location += " " + edifactError.ID
		}
		if edifactError.Field != "" {
			location += " " + edifactError.Field
		}

		return &Failure{
			Kind:    FailureEncode,
			Message: "document cannot be expressed in the requested format",
			Errors: []Issue{{
				Code:     string(edifactError.Kind),
				Severity: string(validation.SeverityError),
				Message:  edifactError.Message,
				Location: location,
			}},
		}
	}

	var gtfsError *gtfsstatic.EncodeError
	if errors.As(err, &gtfsError) {
		return &Failure{
			Kind:    FailureEncode,
			Message: "document cannot be expressed in the requested format",
			Errors: []Issue{{
				Code:     string(gtfsError.Kind),
				Severity: string(validation.SeverityError),
				Message:  gtfsError.Error(),
				Location: fmt.Sprintf("%s %s %s", gtfsError.File, gtfsError.EntityID, gtfsError.Column),
			}},
		}
	}

	return nil
}

func internalFailure() *Failure {
	return &Failure{
		Kind:      FailureInternal,
		Message:   internalFailureMessage,
		Retryable: true,
	}
}
