package jobs

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/gtfs"
	"github.com/travigo/tsiconverter/pkg/validation"
)

const singleStopDocument = `{
	"publisher": {"name": "ZSSK", "url": "https://www.zssk.sk"},
	"agencies": [{"id": "A1", "name": "Agency One", "url": "https://a1.example", "timezone": "Europe/Bratislava"}],
	"stations": [{"id": "S1", "name": "Stop One", "lat": 48.1486, "lon": 17.1077}],
	"services": [{
		"id": "R1",
		"agency_id": "A1",
		"route_type": 3,
		"route_short_name": "1",
		"variants": [{"id": "V1", "calendar": {"monday": true, "start_date": "20240101", "end_date": "20241231"}}],
		"calls": [{"station_id": "S1", "arrival_time": "08:00:00", "departure_time": "08:00:00", "stop_sequence": 1}]
	}]
}`

const reversedTimesDocument = `{
	"agencies": [{"id": "A1", "name": "Agency One", "url": "https://a1.example", "timezone": "UTC"}],
	"stations": [{"id": "S1", "name": "Stop One", "lat": 48.1486, "lon": 17.1077}],
	"services": [{
		"id": "R1",
		"agency_id": "A1",
		"route_type": 3,
		"route_short_name": "1",
		"variants": [{"id": "V1", "calendar": {"monday": true, "start_date": "20240101", "end_date": "20241231"}}],
		"calls": [{"station_id": "S1", "arrival_time": "08:10:00", "departure_time": "08:00:00", "stop_sequence": 1}]
	}]
}`

const unknownAgencyDocument = `{
	"agencies": [{"id": "A1", "name": "Agency One", "url": "https://a1.example", "timezone": "UTC"}],
	"stations": [{"id": "S1", "name": "Stop One", "lat": 48.1486, "lon": 17.1077}],
	"services": [{
		"id": "R1",
		"agency_id": "A9",
		"route_type": 3,
		"route_short_name": "1",
		"variants": [{"id": "V1", "calendar": {"monday": true, "start_date": "20240101", "end_date": "20241231"}}],
		"calls": [{"station_id": "S1", "arrival_time": "08:00:00", "departure_time": "08:00:00", "stop_sequence": 1}]
	}]
}`

func newOrchestrator(t *testing.T, queue Queue) *Orchestrator {
	t.Helper()

	orchestrator := New(NewRegistry(), queue, NewMemoryArtifactStore(), nil, testDefaults)
	t.Cleanup(orchestrator.Stop)

	return orchestrator
}

func startOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	orchestrator := newOrchestrator(t, NewMemoryQueue(16, 2))
	require.NoError(t, orchestrator.Start(context.Background()))

	return orchestrator
}

func convert(t *testing.T, orchestrator *Orchestrator, request Request) Status {
	t.Helper()

	jobID, err := orchestrator.Submit(context.Background(), request)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := orchestrator.Wait(ctx, jobID, request.TenantID)
	require.NoError(t, err)

	return status
}

func TestConvertGTFS(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	require.Equal(t, StateCompleted, status.State, "%+v", status.Failure)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, DefaultTenant, status.TenantID)

	var states []State
	for _, transition := range status.Transitions {
		states = append(states, transition.State)
	}
	assert.Equal(t, pipelineOrder, states)

	artifact, err := orchestrator.Artifact(context.Background(), status.JobID, "")
	require.NoError(t, err)
	assert.Equal(t, gtfs.RequiredFiles, artifact.Names())

	stops, err := artifact.File(gtfs.StopsFile)
	require.NoError(t, err)
	assert.Contains(t, string(stops), "S1,,Stop One,,48.1486,17.1077,,,,,,")

	stopTimes, err := artifact.File(gtfs.StopTimesFile)
	require.NoError(t, err)
	assert.Contains(t, string(stopTimes), "08:00:00,08:00:00,S1,1")

	_, err = artifact.File("shapes.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestConvertEdifact(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{
		Payload: []byte(singleStopDocument),
		Target:  formats.TargetEdifactSKDUPD,
		Options: Options{"reference": "ABC", "post_validate": true},
	})
	require.Equal(t, StateCompleted, status.State, "%+v", status.Failure)

	artifact, err := orchestrator.Artifact(context.Background(), status.JobID, "")
	require.NoError(t, err)

	message, err := artifact.File("skdupd.edi")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(message), edifact.DefaultUNA+"UNB+UNOC:3+ZSSK+RECEIVER+"))
	assert.Contains(t, string(message), "UNZ+1+ABC'")
}

func TestConvertTSDUPDNeedsOmittedCoordinates(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(singleStopDocument), Target: formats.TargetEdifactTSDUPD})
	require.Equal(t, StateFailed, status.State)
	assert.Equal(t, FailureEncode, status.Failure.Kind)
	require.Len(t, status.Failure.Errors, 1)
	assert.Equal(t, string(edifact.EncodeErrorUnsupportedField), status.Failure.Errors[0].Code)
	assert.Equal(t, "station S1 lat", status.Failure.Errors[0].Location)

	status = convert(t, orchestrator, Request{
		Payload: []byte(singleStopDocument),
		Target:  formats.TargetEdifactTSDUPD,
		Options: Options{"omit_coordinates": true},
	})
	assert.Equal(t, StateCompleted, status.State)
}

func TestConvertRealtime(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{
		Payload: []byte(singleStopDocument),
		Target:  formats.TargetGTFSRealtime,
		Options: Options{"feed_type": "alerts", "as_of": "2024-05-06T08:00:00Z", "post_validate": true},
	})
	require.Equal(t, StateCompleted, status.State, "%+v", status.Failure)

	artifact, err := orchestrator.Artifact(context.Background(), status.JobID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alerts.pb"}, artifact.Names())
}

func TestConvertZipPackage(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{
		Payload: []byte(singleStopDocument),
		Target:  formats.TargetGTFS,
		Options: Options{"package": "zip", "post_validate": true},
	})
	require.Equal(t, StateCompleted, status.State, "%+v", status.Failure)

	artifact, err := orchestrator.Artifact(context.Background(), status.JobID, "")
	require.NoError(t, err)
	assert.Contains(t, artifact.Names(), gtfs.ZipFile)

	files, err := gtfs.ReadZip(artifact.Files[gtfs.ZipFile])
	require.NoError(t, err)
	assert.Equal(t, artifact.Files[gtfs.StopsFile], files[gtfs.StopsFile])
}

func TestConvertReportsParseErrors(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(`{"stations": [{"name": "no id"}]}`), Target: formats.TargetGTFS})
	require.Equal(t, StateFailed, status.State)
	assert.Equal(t, FailureParse, status.Failure.Kind)
	require.NotEmpty(t, status.Failure.Errors)
	assert.Equal(t, "MissingField", status.Failure.Errors[0].Code)
	assert.Equal(t, 10, status.Progress)

	_, err := orchestrator.Artifact(context.Background(), status.JobID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConvertInvalidTimeOrder(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(reversedTimesDocument), Target: formats.TargetGTFS})
	require.Equal(t, StateFailed, status.State)
	assert.Equal(t, FailureValidation, status.Failure.Kind)
	require.Len(t, status.Failure.Errors, 1)
	assert.Equal(t, "InvalidTimeOrder", status.Failure.Errors[0].Code)
	assert.Equal(t, string(validation.SeverityError), status.Failure.Errors[0].Severity)
	assert.False(t, status.Failure.Retryable)

	_, err := orchestrator.artifacts.Get(context.Background(), status.JobID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConvertUnknownAgencyBlocksEveryTarget(t *testing.T) {
	orchestrator := startOrchestrator(t)

	for _, target := range formats.Targets {
		status := convert(t, orchestrator, Request{
			Payload: []byte(unknownAgencyDocument),
			Target:  target,
			Options: Options{"omit_coordinates": true},
		})
		require.Equal(t, StateFailed, status.State, target)

		var codes []string
		for _, issue := range status.Failure.Errors {
			codes = append(codes, issue.Code)
		}
		assert.Contains(t, codes, "UnknownAgency", target)
	}
}

func TestSubmitRejects(t *testing.T) {
	orchestrator := newOrchestrator(t, NewMemoryQueue(4, 1))

	_, err := orchestrator.Submit(context.Background(), Request{Payload: []byte(`{}`), Target: "netex"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = orchestrator.Submit(context.Background(), Request{Payload: []byte(`{}`), Target: formats.TargetGTFS, Options: Options{"colour": "red"}})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	assert.Equal(t, 0, orchestrator.Registry().Len())
}

func TestSubmitQueueFull(t *testing.T) {
	orchestrator := newOrchestrator(t, NewMemoryQueue(1, 1))

	jobID, err := orchestrator.Submit(context.Background(), Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	require.NoError(t, err)

	_, err = orchestrator.Submit(context.Background(), Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, orchestrator.Registry().Len())

	status, err := orchestrator.Status(jobID, "")
	require.NoError(t, err)
	assert.Equal(t, StateQueued, status.State)

	_, err = orchestrator.Artifact(context.Background(), jobID, "")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestTenantIsolation(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS, TenantID: "t1"})
	require.Equal(t, StateCompleted, status.State)

	_, err := orchestrator.Status(status.JobID, "t2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = orchestrator.Status(status.JobID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = orchestrator.Artifact(context.Background(), status.JobID, "t2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = orchestrator.Cancel(status.JobID, "t2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = orchestrator.Artifact(context.Background(), status.JobID, "t1")
	assert.NoError(t, err)
}

func TestCancelWhileEncoding(t *testing.T) {
	orchestrator := newOrchestrator(t, NewMemoryQueue(4, 1))

	reached := make(chan string, 1)
	release := make(chan struct{})
	orchestrator.stageHook = func(jobID string, state State) {
		if state == StateEncoding {
			reached <- jobID
			<-release
		}
	}
	require.NoError(t, orchestrator.Start(context.Background()))

	jobID, err := orchestrator.Submit(context.Background(), Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	require.NoError(t, err)

	select {
	case reached := <-reached:
		require.Equal(t, jobID, reached)
	case <-time.After(10 * time.Second):
		t.Fatal("job never reached encoding")
	}

	cancelled, err := orchestrator.Cancel(jobID, "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, cancelled.State)
	assert.Equal(t, FailureCancelled, cancelled.Failure.Kind)
	assert.Equal(t, 50, cancelled.Progress)
	close(release)

	_, err = orchestrator.Cancel(jobID, "")
	assert.ErrorIs(t, err, ErrTerminal)

	assert.Eventually(t, func() bool {
		_, err := orchestrator.artifacts.Get(context.Background(), jobID)
		status, _ := orchestrator.Status(jobID, "")
		return err == ErrNotFound && status.State == StateFailed
	}, 5*time.Second, 10*time.Millisecond)

	_, err = orchestrator.Artifact(context.Background(), jobID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupervisorTimesOutAndPrunes(t *testing.T) {
	orchestrator := newOrchestrator(t, NewMemoryQueue(4, 1))

	jobID, err := orchestrator.Submit(context.Background(), Request{
		Payload: []byte(singleStopDocument),
		Target:  formats.TargetGTFS,
		Options: Options{"timeout": "5s"},
	})
	require.NoError(t, err)

	now := time.Now()
	orchestrator.supervisor.Check(now)
	status, _ := orchestrator.Status(jobID, "")
	assert.Equal(t, StateQueued, status.State)

	orchestrator.supervisor.Check(now.Add(10 * time.Second))
	status, _ = orchestrator.Status(jobID, "")
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, FailureTimeout, status.Failure.Kind)

	orchestrator.supervisor.Check(now.Add(testDefaults.RecordRetention + time.Minute))
	_, err = orchestrator.Status(jobID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, orchestrator.Registry().Len())
}

func TestSupervisorDeletesArtifactsOfPrunedJobs(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	require.Equal(t, StateCompleted, status.State)

	orchestrator.supervisor.Check(time.Now().Add(testDefaults.RecordRetention + time.Minute))

	_, err := orchestrator.artifacts.Get(context.Background(), status.JobID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidate(t *testing.T) {
	orchestrator := newOrchestrator(t, NewMemoryQueue(1, 1))
	document := []byte(singleStopDocument)

	report, err := orchestrator.Validate(context.Background(), ValidationRequest{Payload: document, Format: formats.ValidationGTFS})
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.Equal(t, formats.LevelStandard, report.Level)

	report, err = orchestrator.Validate(context.Background(), ValidationRequest{Payload: []byte(reversedTimesDocument), Format: formats.ValidationJSONTransport})
	require.NoError(t, err)
	assert.False(t, report.Valid())

	_, err = orchestrator.Validate(context.Background(), ValidationRequest{Payload: document, Format: "netex"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, 0, orchestrator.Registry().Len())
}

func TestValidateSerializedOutput(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	require.Equal(t, StateCompleted, status.State)
	artifact, err := orchestrator.Artifact(context.Background(), status.JobID, "")
	require.NoError(t, err)

	report, err := orchestrator.Validate(context.Background(), ValidationRequest{Files: artifact.Files, Format: formats.ValidationGTFS})
	require.NoError(t, err)
	assert.True(t, report.Valid(), "%v", report.Errors)

	report, err = orchestrator.Validate(context.Background(), ValidationRequest{Content: "UNB+UNOC:3'", Format: formats.ValidationEdifact})
	require.NoError(t, err)
	assert.False(t, report.Valid())
}

func TestFormatNamesAreCaseInsensitive(t *testing.T) {
	orchestrator := startOrchestrator(t)

	status := convert(t, orchestrator, Request{Payload: []byte(singleStopDocument), Target: "GTFS", Options: Options{"package": "zip"}})
	require.Equal(t, StateCompleted, status.State, "%+v", status.Failure)
	assert.Equal(t, formats.TargetGTFS, status.Target)

	status = convert(t, orchestrator, Request{Payload: []byte(unknownAgencyDocument), Target: "GTFS"})
	require.Equal(t, StateFailed, status.State)
	assert.Equal(t, FailureValidation, status.Failure.Kind)

	for _, format := range []formats.Validation{"gtfs", "GTFS", "Json-Transport"} {
		report, err := orchestrator.Validate(context.Background(), ValidationRequest{Payload: []byte(unknownAgencyDocument), Format: format})
		require.NoError(t, err)
		assert.False(t, report.Valid(), format)

		var codes []string
		for _, finding := range report.Errors {
			codes = append(codes, finding.Code)
		}
		assert.Contains(t, codes, "UnknownAgency", format)
	}
}

func TestEdifactReferencesDifferPerJob(t *testing.T) {
	orchestrator := startOrchestrator(t)

	var references []string
	for i := 0; i < 2; i++ {
		status := convert(t, orchestrator, Request{Payload: []byte(singleStopDocument), Target: formats.TargetEdifactSKDUPD})
		require.Equal(t, StateCompleted, status.State, "%+v", status.Failure)

		artifact, err := orchestrator.Artifact(context.Background(), status.JobID, "")
		require.NoError(t, err)

		interchange, err := edifact.Parse(string(artifact.Files["skdupd.edi"]))
		require.NoError(t, err)
		unh := interchange.Find("UNH")
		require.Len(t, unh, 1)

		reference := jobReference(status.JobID)
		assert.Len(t, reference, 12)
		assert.Equal(t, reference+"01", unh[0].Value(0, 0))
		references = append(references, unh[0].Value(0, 0))
	}

	assert.NotEqual(t, references[0], references[1])
}

func TestStopFailsJobsThatNeverRan(t *testing.T) {
	orchestrator := New(NewRegistry(), NewMemoryQueue(4, 1), NewMemoryArtifactStore(), nil, testDefaults)

	jobID, err := orchestrator.Submit(context.Background(), Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	require.NoError(t, err)

	orchestrator.Stop()

	status, err := orchestrator.Status(jobID, "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, FailureInternal, status.Failure.Kind)
	assert.True(t, status.Failure.Retryable)
}

func TestProgressSeenByPollingNeverDecreases(t *testing.T) {
	orchestrator := newOrchestrator(t, NewMemoryQueue(4, 1))

	var seen []int
	completed := make(chan struct{})
	orchestrator.stageHook = func(id string, state State) {
		status, err := orchestrator.Status(id, "")
		if err == nil {
			seen = append(seen, status.Progress)
		}
		if state == StateCompleted {
			close(completed)
		}
	}
	require.NoError(t, orchestrator.Start(context.Background()))

	jobID, err := orchestrator.Submit(context.Background(), Request{Payload: []byte(singleStopDocument), Target: formats.TargetGTFS})
	require.NoError(t, err)

	var polled []int
	deadline := time.Now().Add(10 * time.Second)
	for {
		status, err := orchestrator.Status(jobID, "")
		require.NoError(t, err)
		polled = append(polled, status.Progress)
		if status.State.Terminal() {
			require.Equal(t, StateCompleted, status.State)
			break
		}
		require.True(t, time.Now().Before(deadline), "job did not finish")
		time.Sleep(time.Millisecond)
	}

	select {
	case <-completed:
	case <-time.After(10 * time.Second):
		t.Fatal("completed stage was never reported")
	}

	assert.Equal(t, []int{10, 30, 50, 80, 100}, seen)
	assert.True(t, sort.IntsAreSorted(polled), "%v", polled)
	assert.Equal(t, 100, polled[len(polled)-1])
}
