// Package pipeline runs one conversion end to end: fetch the source,
// convert it, persist the artifacts into a working directory, bundle them
// into an archive and deliver the archive.
//
// # Basic Usage
//
//	p, err := pipeline.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	report, err := p.Run(ctx, pipeline.Request{
//	    Location:    "https://example.com/people.csv",
//	    Destination: "s3://exports/daily/",
//	})
//
// A partial conversion, where one of the two targets failed to encode, is
// not fatal. The surviving artifact is archived and delivered and the
// encode failure is reported in Report.Warning.
package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/config"
	"github.com/ajitpratap0/nebula-convert/pkg/convert"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/input"
	"github.com/ajitpratap0/nebula-convert/pkg/logger"
	"github.com/ajitpratap0/nebula-convert/pkg/metrics"
	"github.com/ajitpratap0/nebula-convert/pkg/observability"
	"github.com/ajitpratap0/nebula-convert/pkg/sink"
)

// Request describes one conversion
type Request struct {
	// ID correlates logs and spans. A random ID is generated when empty.
	ID string
	// Location is fetched when Input is nil: a path or an http(s) URL
	Location string
	// Input is an already read source, for example an upload
	Input *input.Input
	// Format overrides the configured archive format
	Format archive.Format
	// WorkDir is used as the working directory and kept afterwards.
	// Empty means a temporary directory under output.work_dir.
	WorkDir string
	// Deliverer receives the archive. When nil, Destination (or the
	// configured output.destination) is resolved with sink.ForURI. When
	// both are empty the archive is only returned in the Report.
	Deliverer   sink.Deliverer
	Destination string
}

// Report describes a finished conversion
type Report struct {
	RequestID string
	Source    string
	Encoding  convert.Encoding
	// Artifacts are the archived artifact names in write order
	Artifacts   []string
	ArchiveName string
	ContentType string
	Archive     []byte
	Manifest    *archive.Manifest
	// DeliveredTo is where the deliverer put the archive, if anywhere
	DeliveredTo string
	// Warning holds encode failures of a partial conversion
	Warning  error
	Duration time.Duration
}

// Pipeline runs conversions with a fixed configuration. It is safe for
// concurrent use; every Run gets its own working directory.
type Pipeline struct {
	config    *config.Config
	provider  *input.Provider
	converter *convert.Converter
	format    archive.Format
	logger    *zap.Logger
}

// New validates cfg and prepares the fetch and convert stages
func New(cfg *config.Config, l *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if l == nil {
		l = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tabularOpts, err := cfg.TabularOptions()
	if err != nil {
		return nil, err
	}
	format, err := cfg.ArchiveFormat()
	if err != nil {
		return nil, err
	}

	l = l.With(zap.String("component", "pipeline"))
	return &Pipeline{
		config:   cfg,
		provider: input.NewProvider(cfg.Input, l),
		converter: convert.NewConverter(
			convert.WithTabularOptions(tabularOpts),
			convert.WithLogger(l),
		),
		format: format,
		logger: l,
	}, nil
}

// WithProvider replaces the input provider, mainly for tests
func (p *Pipeline) WithProvider(provider *input.Provider) *Pipeline {
	p.provider = provider
	return p
}

// Run executes every stage of req and stops at the first fatal error. The
// returned Report is non-nil whenever the source was read.
func (p *Pipeline) Run(ctx context.Context, req Request) (report *Report, err error) {
	timer := metrics.NewTimer()
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = logger.ContextWith(ctx, logger.RequestIDKey, req.ID)

	ctx, span := observability.StartSpan(ctx, "pipeline.run",
		attribute.String("request.id", req.ID))
	defer func() { span.Finish(err) }()

	in, err := p.source(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = logger.ContextWith(ctx, logger.SourceKey, in.Location)
	ctx = logger.ContextWith(ctx, logger.EncodingKey, in.Encoding.String())
	log := p.logger.With(
		zap.String("request_id", req.ID),
		zap.String("source", in.Location),
		zap.String("encoding", in.Encoding.String()))

	span.SetAttribute("source.name", in.Name)
	span.SetAttribute("source.encoding", in.Encoding.String())
	span.SetAttribute("source.bytes", len(in.Data))
	metrics.InputBytes.WithLabelValues(in.Encoding.String()).Observe(float64(len(in.Data)))

	report = &Report{
		RequestID: req.ID,
		Source:    in.Location,
		Encoding:  in.Encoding,
	}
	defer func() { report.Duration = timer.Stop() }()

	result, err := p.convert(ctx, in)
	if err != nil {
		if result.Len() == 0 {
			return report, err
		}
		log.Warn("partial conversion", zap.Strings("artifacts", result.Names()), zap.Error(err))
		report.Warning = err
		err = nil
	}
	report.Artifacts = result.Names()

	format := req.Format
	if format == "" {
		format = p.format
	}
	if err = p.bundle(ctx, req, format, result, report); err != nil {
		return report, err
	}

	if err = p.deliver(ctx, req, in, report); err != nil {
		return report, err
	}

	log.Info("conversion finished",
		zap.Strings("artifacts", report.Artifacts),
		zap.String("archive", report.ArchiveName),
		zap.Int("archive_bytes", len(report.Archive)),
		zap.String("delivered_to", report.DeliveredTo),
		zap.Duration("duration", timer.Stop()))
	return report, nil
}

func (p *Pipeline) source(ctx context.Context, req Request) (*input.Input, error) {
	if req.Input != nil {
		return req.Input, nil
	}
	if req.Location == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "no input given")
	}

	_, span := observability.StartSpan(ctx, "pipeline.fetch",
		attribute.String("source.location", req.Location))
	in, err := p.provider.Fetch(ctx, req.Location)
	span.Finish(err)
	return in, err
}

func (p *Pipeline) convert(ctx context.Context, in *input.Input) (*convert.Result, error) {
	_, span := observability.StartSpan(ctx, "pipeline.convert")
	timer := metrics.NewTimer()

	result, err := p.converter.Convert(in.Encoding, in.Data)

	source := in.Encoding.String()
	if in.Encoding == convert.Unknown {
		metrics.ConversionsTotal.WithLabelValues(source, metrics.StatusUnsupported).Inc()
		logger.WithContext(ctx).Info("unsupported source encoding, archive will be empty")
	} else {
		metrics.ObserveConversion(source, err, timer.Stop())
	}
	result.Each(func(name string, _ []byte) bool {
		metrics.ArtifactsTotal.WithLabelValues(convert.DetectEncoding(name).String()).Inc()
		return true
	})

	span.SetAttribute("artifacts", result.Len())
	span.Finish(err)
	return result, err
}

// bundle persists result into a working directory and archives it there
func (p *Pipeline) bundle(ctx context.Context, req Request, format archive.Format, result *convert.Result, report *Report) (err error) {
	_, span := observability.StartSpan(ctx, "pipeline.archive",
		attribute.String("archive.format", string(format)))
	defer func() { span.Finish(err) }()

	wd, err := sink.NewWorkdir(req.WorkDir, p.config.Output.WorkDir, p.logger)
	if err != nil {
		return err
	}
	if !p.config.Output.KeepWorkDir {
		defer func() {
			if cerr := wd.Close(); cerr != nil {
				p.logger.Warn("failed to clean up working directory", zap.Error(cerr))
			}
		}()
	}

	if err = wd.Persist(result); err != nil {
		return err
	}
	archivePath, manifest, err := wd.Archive(format, p.config.ArchiveOptions())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read archive").
			WithDetail("path", archivePath)
	}

	report.ArchiveName = format.FileName()
	report.ContentType = format.ContentType()
	report.Archive = data
	report.Manifest = manifest
	metrics.ArchiveBytes.WithLabelValues(string(format)).Observe(float64(len(data)))
	span.SetAttribute("archive.bytes", len(data))
	return nil
}

func (p *Pipeline) deliver(ctx context.Context, req Request, in *input.Input, report *Report) (err error) {
	d := req.Deliverer
	if d == nil {
		dest := req.Destination
		if dest == "" {
			dest = p.config.Output.Destination
		}
		if dest == "" {
			return nil
		}
		d, err = sink.ForURI(ctx, dest, p.config.SinkOptions(p.logger))
		if err != nil {
			return err
		}
		if c, ok := d.(io.Closer); ok {
			defer c.Close()
		}
	}

	name := sinkName(d)
	_, span := observability.StartSpan(ctx, "pipeline.deliver", attribute.String("sink", name))
	defer func() { span.Finish(err) }()

	location, err := d.Deliver(ctx, sink.Artifact{
		Name:        report.ArchiveName,
		ContentType: report.ContentType,
		Data:        report.Archive,
		Metadata: map[string]string{
			"source":     in.Name,
			"encoding":   in.Encoding.String(),
			"request-id": report.RequestID,
		},
	})
	metrics.DeliveriesTotal.WithLabelValues(name, metrics.Status(err)).Inc()
	if err != nil {
		return err
	}
	report.DeliveredTo = location
	return nil
}

func sinkName(d sink.Deliverer) string {
	switch d.(type) {
	case *sink.FileDeliverer:
		return "file"
	case *sink.S3Deliverer:
		return "s3"
	case *sink.GCSDeliverer:
		return "gcs"
	case *sink.HTTPDeliverer:
		return "http"
	default:
		return "custom"
	}
}
