// Package ingest runs the Dynamic Ingest workflow: create the video record
// when needed, fetch upload credentials and push each local file, then
// trigger the ingest job.
//
// Every Ingest call walks the same states:
//
//	ValidatingInput -> CreatingVideo? -> (FetchingUploadURLs -> UploadingAsset)*
//	  -> ProcessingTextTracks* -> TriggeringIngest -> Done
//
// A failure in any state ends the call. The partial Response recorded up to
// that point is returned with the error. Nothing already created remotely is
// cleaned up.
package ingest

import (
	"context"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/dynamic-ingest/internal/brightcove"
	"github.com/fpang/dynamic-ingest/internal/ingesterr"
	"github.com/fpang/dynamic-ingest/internal/metrics"
	"github.com/fpang/dynamic-ingest/internal/s3util"
)

// State is a step of the ingest workflow.
type State string

const (
	StateValidatingInput      State = "ValidatingInput"
	StateCreatingVideo        State = "CreatingVideo"
	StateFetchingUploadURLs   State = "FetchingUploadURLs"
	StateUploadingAsset       State = "UploadingAsset"
	StateProcessingTextTracks State = "ProcessingTextTracks"
	StateTriggeringIngest     State = "TriggeringIngest"
	StateDone                 State = "Done"
)

// Content types tagged on uploads.
const (
	ContentTypeVideo     = "video/mp4"
	ContentTypeImage     = "image/png"
	ContentTypeTextTrack = "text/vtt"
)

// textTrackKind labels text track uploads in UploadDescriptor and UploadRecord.
const textTrackKind = "text_track"

// API is the set of remote calls the workflow makes.
type API interface {
	CreateVideo(ctx context.Context, meta brightcove.VideoMetadata) (*brightcove.Video, error)
	UploadURLs(ctx context.Context, videoID, fileName string) (*brightcove.UploadURLs, error)
	CreateIngestRequest(ctx context.Context, videoID string, opts brightcove.IngestOptions) (*brightcove.IngestJob, error)
	IngestJobStatus(ctx context.Context, videoID, jobID string) (*brightcove.JobStatus, error)
}

// Uploader pushes a local file to object storage.
type Uploader interface {
	Upload(ctx context.Context, target s3util.Target, path, contentType string) (*s3util.Result, error)
}

// UploadDescriptor is the per-file working record of a push ingest. It lives
// only for the upload it describes.
type UploadDescriptor struct {
	Kind            string
	FileName        string
	EncodedFileName string
	Path            string
	ContentType     string
	APIRequestURL   string
	Target          s3util.Target
}

// Orchestrator runs ingest requests against one account.
type Orchestrator struct {
	api              API
	uploader         Uploader
	concurrency      int
	metricsNamespace string
	now              func() time.Time
	sleep            func(context.Context, time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUploadConcurrency lets up to n (upload-url, upload) pairs run at once.
// The ingest trigger still waits for all of them. Default 1.
func WithUploadConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMetrics emits one EMF document per Ingest call under namespace.
func WithMetrics(namespace string) Option {
	return func(o *Orchestrator) { o.metricsNamespace = namespace }
}

// WithClock sets the time source used for job polling deadlines.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleep replaces the wait between job status polls.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// New creates an orchestrator. uploader may be nil when only pull requests
// are run.
func New(api API, uploader Uploader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:         api,
		uploader:    uploader,
		concurrency: 1,
		now:         time.Now,
		sleep:       brightcove.SleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ingest runs req to completion. The returned Response is never nil: on
// error it holds whatever was recorded before the failing step.
func (o *Orchestrator) Ingest(ctx context.Context, req Request) (*Response, error) {
	ingestID := uuid.NewString()
	logger := log.Ctx(ctx).With().Str("ingestId", ingestID).Logger()
	if req != nil {
		logger = logger.With().Str("mode", string(req.Mode())).Logger()
	}
	ctx = logger.WithContext(ctx)

	rec := NewRecorder()
	start := time.Now()
	err := o.run(ctx, req, rec)
	snap := rec.Snapshot()
	snap.IngestID = ingestID
	o.emitMetrics(ingestID, req, &snap, time.Since(start), err)

	if err != nil {
		logger.Error().Err(err).Str("kind", ingesterr.KindOf(err).String()).Msg("Ingest failed")
		return &snap, err
	}
	logger.Info().Str("videoId", snap.VideoID).Str("jobId", snap.Ingest.ID).Dur("duration", time.Since(start)).Msg("Ingest request submitted")
	return &snap, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, rec *Recorder) error {
	enter(ctx, StateValidatingInput)
	if err := Validate(req); err != nil {
		return err
	}
	if o.uploader == nil && isPush(req) {
		return ingesterr.Configuration(ingesterr.CodeInvalidUploadOption, "push ingest requires an uploader")
	}
	opts := req.Options().Clone()

	var videoID string
	var files FileMap
	var tracks []TextTrack
	switch r := req.(type) {
	case NewPullRequest:
		video, err := o.createVideo(ctx, r.Video, rec)
		if err != nil {
			return err
		}
		videoID = video.ID
	case NewPushRequest:
		video, err := o.createVideo(ctx, r.Video, rec)
		if err != nil {
			return err
		}
		videoID = video.ID
		files, tracks = r.Files, r.TextTracks
	case ExistingPullRequest:
		videoID = r.VideoID
	case ExistingPushRequest:
		videoID = r.VideoID
		files = r.Files
	}
	rec.RecordVideoID(videoID)

	if len(files) > 0 {
		descs, err := assetDescriptors(files)
		if err != nil {
			return err
		}
		if err := o.processUploads(ctx, videoID, descs, StateFetchingUploadURLs, rec); err != nil {
			return err
		}
		for _, d := range descs {
			applyAsset(&opts, d)
		}
	}

	if len(tracks) > 0 {
		descs := trackDescriptors(tracks)
		if err := o.processUploads(ctx, videoID, descs, StateProcessingTextTracks, rec); err != nil {
			return err
		}
		opts.TextTracks = make([]brightcove.TextTrackRef, 0, len(tracks))
		for i, tt := range tracks {
			opts.TextTracks = append(opts.TextTracks, brightcove.TextTrackRef{
				URL:     descs[i].APIRequestURL,
				SrcLang: tt.SrcLang,
				Kind:    tt.Kind,
				Label:   tt.Label,
				Default: tt.Default,
			})
		}
	}

	enter(ctx, StateTriggeringIngest)
	job, err := o.api.CreateIngestRequest(ctx, videoID, opts)
	if err != nil {
		return err
	}
	rec.RecordIngest(job, opts)
	enter(ctx, StateDone)
	return nil
}

func (o *Orchestrator) createVideo(ctx context.Context, meta brightcove.VideoMetadata, rec *Recorder) (*brightcove.Video, error) {
	enter(ctx, StateCreatingVideo)
	video, err := o.api.CreateVideo(ctx, meta)
	if err != nil {
		return nil, err
	}
	rec.RecordVideo(video)
	return video, nil
}

// uploadResult is what one (upload-url, upload) pair produced.
type uploadResult struct {
	urls   *brightcove.UploadURLs
	upload *s3util.Result
}

// processUploads resolves and uploads every descriptor. Results are recorded
// in declared order; on failure the completed prefix is recorded.
func (o *Orchestrator) processUploads(ctx context.Context, videoID string, descs []*UploadDescriptor, state State, rec *Recorder) error {
	results := make([]uploadResult, len(descs))

	if o.concurrency <= 1 || len(descs) == 1 {
		for i, d := range descs {
			enter(ctx, state, d.Kind)
			err := o.resolveAndUpload(ctx, videoID, d, &results[i])
			recordResult(rec, d, results[i])
			if err != nil {
				return err
			}
		}
		return nil
	}

	enter(ctx, state)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, d := range descs {
		g.Go(func() error {
			return o.resolveAndUpload(gctx, videoID, d, &results[i])
		})
	}
	err := g.Wait()
	for i, d := range descs {
		if results[i].urls == nil {
			break
		}
		recordResult(rec, d, results[i])
		if results[i].upload == nil {
			break
		}
	}
	return err
}

func recordResult(rec *Recorder, d *UploadDescriptor, res uploadResult) {
	if res.urls != nil {
		rec.RecordUploadURLs(*res.urls)
	}
	if res.upload != nil {
		rec.RecordUpload(UploadRecord{Kind: d.Kind, FileName: d.FileName, Result: res.upload})
	}
}

func (o *Orchestrator) resolveAndUpload(ctx context.Context, videoID string, d *UploadDescriptor, out *uploadResult) error {
	logger := log.Ctx(ctx).With().Str("kind", d.Kind).Str("file", d.FileName).Logger()

	urls, err := o.api.UploadURLs(ctx, videoID, d.EncodedFileName)
	if err != nil {
		return err
	}
	out.urls = urls
	d.APIRequestURL = urls.APIRequestURL
	d.Target = s3util.Target{
		Bucket:          urls.Bucket,
		Key:             urls.ObjectKey,
		AccessKeyID:     urls.AccessKeyID,
		SecretAccessKey: urls.SecretAccessKey,
		SessionToken:    urls.SessionToken,
	}

	logger.Debug().Str("state", string(StateUploadingAsset)).Str("bucket", d.Target.Bucket).Str("key", d.Target.Key).Msg("Entering state")
	res, err := o.uploader.Upload(ctx, d.Target, d.Path, d.ContentType)
	if err != nil {
		return ingesterr.Upload("upload "+d.Kind, err)
	}
	out.upload = res
	return nil
}

func assetDescriptors(files FileMap) ([]*UploadDescriptor, error) {
	descs := make([]*UploadDescriptor, 0, len(files))
	for _, a := range files {
		ct, err := contentTypeFor(a.Kind)
		if err != nil {
			return nil, err
		}
		descs = append(descs, newDescriptor(string(a.Kind), a.Path, ct))
	}
	return descs, nil
}

func trackDescriptors(tracks []TextTrack) []*UploadDescriptor {
	descs := make([]*UploadDescriptor, 0, len(tracks))
	for _, tt := range tracks {
		descs = append(descs, newDescriptor(textTrackKind, tt.Path, ContentTypeTextTrack))
	}
	return descs
}

func newDescriptor(kind, path, contentType string) *UploadDescriptor {
	name := filepath.Base(path)
	return &UploadDescriptor{
		Kind:            kind,
		FileName:        name,
		EncodedFileName: url.QueryEscape(name),
		Path:            path,
		ContentType:     contentType,
	}
}

func contentTypeFor(kind AssetKind) (string, error) {
	switch kind {
	case AssetVideo:
		return ContentTypeVideo, nil
	case AssetPoster, AssetThumbnail:
		return ContentTypeImage, nil
	default:
		return "", ingesterr.Validation(ingesterr.CodeInvalidFileType, "unsupported asset kind %q (want video, poster or thumbnail)", kind)
	}
}

// applyAsset points the ingest payload at an uploaded asset.
func applyAsset(opts *brightcove.IngestOptions, d *UploadDescriptor) {
	switch AssetKind(d.Kind) {
	case AssetVideo:
		opts.Master = &brightcove.Master{URL: d.APIRequestURL}
	case AssetPoster:
		opts.Poster = &brightcove.Image{URL: d.APIRequestURL}
	case AssetThumbnail:
		opts.Thumbnail = &brightcove.Image{URL: d.APIRequestURL}
	}
}

func isPush(req Request) bool {
	switch req.(type) {
	case NewPushRequest, ExistingPushRequest:
		return true
	}
	return false
}

func enter(ctx context.Context, state State, detail ...string) {
	e := log.Ctx(ctx).Debug().Str("state", string(state))
	if len(detail) > 0 {
		e = e.Strs("detail", detail)
	}
	e.Msg("Entering state")
}

func (o *Orchestrator) emitMetrics(ingestID string, req Request, resp *Response, d time.Duration, err error) {
	if o.metricsNamespace == "" {
		return
	}
	mode := "unknown"
	if req != nil {
		mode = string(req.Mode())
	}
	rec := metrics.New(o.metricsNamespace).
		Dimension("Mode", mode).
		Duration("IngestDuration", d).
		Metric("FilesUploaded", float64(len(resp.Uploads)), metrics.UnitCount).
		Property("ingestId", ingestID).
		Property("videoId", resp.VideoID)
	if err != nil {
		rec.Count("IngestFailed").Property("errorKind", ingesterr.KindOf(err).String())
	} else {
		rec.Count("IngestSucceeded").Property("jobId", resp.Ingest.ID)
	}
	rec.Flush()
}
