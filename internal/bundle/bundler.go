// Package bundle assembles self-contained release archives from the
// artifact catalog. A bundle is the transitive closure of the requested
// artifacts plus a manifest, zipped deterministically so that identical
// inputs produce byte-identical archives.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	appcatalog "github.com/zjrosen/reliq/internal/application/catalog"
	domain "github.com/zjrosen/reliq/internal/domain/catalog"
	"github.com/zjrosen/reliq/internal/log"
	"github.com/zjrosen/reliq/internal/pubsub"
)

// BundleType is the artifact type under which created bundles are
// optionally registered.
const BundleType = "release_bundle"

// archiveEpoch is the fixed modification time stamped on every archive
// entry. Wall-clock mtimes would make otherwise identical archives differ.
var archiveEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Catalog is the slice of the application service the bundler needs.
type Catalog interface {
	Snapshot() (domain.Registry, error)
	Register(ctx context.Context, req appcatalog.RegisterRequest) (domain.Artifact, error)
}

// CreateRequest describes one bundle.
type CreateRequest struct {
	// Name labels the bundle in the manifest. Defaults to the output
	// file name without extension.
	Name string
	// Roots are the artifact names whose closure goes into the bundle.
	Roots []string
	// OutputPath is where the finished archive lands.
	OutputPath string
	// IncludeMetadata copies artifact metadata maps into the manifest.
	IncludeMetadata bool
	// RegisterBundle registers the archive as a release_bundle artifact
	// whose inputs are the bundled closure.
	RegisterBundle bool

	// BundleID and CreatedAt pin the manifest identity for reproducible
	// builds. Zero values mean a fresh UUID and the current time.
	BundleID  string
	CreatedAt time.Time
}

// Result reports a created bundle.
type Result struct {
	OutputPath string
	BundleID   string
	Artifacts  []string
	SizeBytes  int64
}

// Bundler builds release archives from the catalog.
type Bundler struct {
	catalog Catalog
	tracer  trace.Tracer
	broker  *pubsub.Broker[appcatalog.Change]
}

// Option configures optional bundler collaborators.
type Option func(*Bundler)

// WithBroker publishes a bundled event after each successful create.
func WithBroker(b *pubsub.Broker[appcatalog.Change]) Option {
	return func(bundler *Bundler) { bundler.broker = b }
}

// NewBundler returns a bundler over the given catalog. A nil tracer means
// no spans.
func NewBundler(catalog Catalog, tracer trace.Tracer, opts ...Option) *Bundler {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	b := &Bundler{catalog: catalog, tracer: tracer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resolve returns the closure that a bundle of the given roots would
// contain, without creating anything.
func (b *Bundler) Resolve(roots []string) ([]domain.Artifact, error) {
	reg, err := b.catalog.Snapshot()
	if err != nil {
		return nil, err
	}
	return reg.ResolveClosure(roots)
}

// Create builds the bundle: resolve the closure, check every file exists,
// stage the tree, write the manifest, zip deterministically, and move the
// archive into place. On any failure the output path is never touched and
// the staging directory is removed.
func (b *Bundler) Create(ctx context.Context, req CreateRequest) (Result, error) {
	ctx, span := b.tracer.Start(ctx, "bundle.create", trace.WithAttributes(
		attribute.StringSlice("bundle.roots", req.Roots),
		attribute.String("bundle.output", req.OutputPath),
	))
	defer span.End()

	result, err := b.create(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("bundle.artifacts", len(result.Artifacts)))
	return result, nil
}

func (b *Bundler) create(ctx context.Context, req CreateRequest) (Result, error) {
	reg, err := b.catalog.Snapshot()
	if err != nil {
		return Result{}, err
	}
	closure, err := reg.ResolveClosure(req.Roots)
	if err != nil {
		return Result{}, err
	}

	// Every file must exist before anything is staged or written, so a
	// drifted registry aborts with no output artifact at all.
	for _, artifact := range closure {
		if _, err := os.Stat(artifact.FilePath); err != nil {
			if os.IsNotExist(err) {
				return Result{}, &domain.FileNotFoundError{Name: artifact.Name, Path: artifact.FilePath}
			}
			return Result{}, fmt.Errorf("checking %s: %w", artifact.FilePath, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	staging, err := os.MkdirTemp("", "reliq-bundle-*")
	if err != nil {
		return Result{}, fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			log.ErrorErr(log.CatBundle, "failed to remove staging directory", err, "path", staging)
		}
	}()

	manifest, err := b.stage(ctx, staging, req, closure)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	size, err := writeArchive(staging, manifest, req.OutputPath)
	if err != nil {
		return Result{}, err
	}

	names := make([]string, len(closure))
	for i, artifact := range closure {
		names[i] = artifact.Name
	}
	log.Info(log.CatBundle, "bundle created",
		"output", req.OutputPath, "artifacts", len(names), "bytes", size)

	if req.RegisterBundle {
		if _, err := b.catalog.Register(ctx, appcatalog.RegisterRequest{
			Name:           manifest.Name,
			Type:           BundleType,
			FilePath:       req.OutputPath,
			InputArtifacts: names,
		}); err != nil {
			return Result{}, fmt.Errorf("registering bundle: %w", err)
		}
	}

	if b.broker != nil {
		b.broker.Publish(pubsub.BundledEvent, appcatalog.Change{Verb: "bundle", Artifacts: names})
	}

	return Result{
		OutputPath: req.OutputPath,
		BundleID:   manifest.ID,
		Artifacts:  names,
		SizeBytes:  size,
	}, nil
}

// stage copies the closure into staging as files/<type>/<name><ext> and
// writes manifest.yaml alongside.
func (b *Bundler) stage(ctx context.Context, staging string, req CreateRequest, closure []domain.Artifact) (Manifest, error) {
	manifest := Manifest{
		Name:          req.Name,
		ID:            req.BundleID,
		SchemaVersion: ManifestSchemaVersion,
		CreatedAt:     req.CreatedAt,
		Artifacts:     make([]ManifestEntry, 0, len(closure)),
	}
	if manifest.Name == "" {
		base := filepath.Base(req.OutputPath)
		manifest.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	if manifest.ID == "" {
		manifest.ID = uuid.NewString()
	}
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}

	for _, artifact := range closure {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}

		archivePath := path.Join("files", artifact.Type, artifact.Name+filepath.Ext(artifact.FilePath))
		dest := filepath.Join(staging, filepath.FromSlash(archivePath))
		if err := copyFile(artifact.FilePath, dest); err != nil {
			return Manifest{}, fmt.Errorf("staging %s: %w", artifact.Name, err)
		}

		entry := ManifestEntry{
			Name:           artifact.Name,
			Type:           artifact.Type,
			OriginalPath:   artifact.FilePath,
			ArchivePath:    archivePath,
			ContentHash:    artifact.ContentHash,
			SizeBytes:      artifact.SizeBytes,
			CreatedAt:      artifact.CreatedAt,
			InputArtifacts: artifact.InputArtifacts,
		}
		if req.IncludeMetadata {
			entry.Metadata = artifact.Metadata
		}
		manifest.Artifacts = append(manifest.Artifacts, entry)
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, ManifestFileName), data, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("writing manifest: %w", err)
	}
	return manifest, nil
}

// writeArchive zips the staged tree and renames the finished archive onto
// outputPath. Entry order is sorted and every entry carries a fixed
// timestamp, so the archive bytes depend only on the staged content.
func writeArchive(staging string, manifest Manifest, outputPath string) (int64, error) {
	entries := make([]string, 0, len(manifest.Artifacts)+1)
	entries = append(entries, ManifestFileName)
	for _, artifact := range manifest.Artifacts {
		entries = append(entries, artifact.ArchivePath)
	}
	sort.Strings(entries)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}
	temp, err := os.CreateTemp(filepath.Dir(outputPath), ".bundle.tmp.*")
	if err != nil {
		return 0, fmt.Errorf("creating temp archive: %w", err)
	}
	tempPath := temp.Name()
	cleanup := func() {
		_ = temp.Close()
		_ = os.Remove(tempPath)
	}

	zw := zip.NewWriter(temp)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, name := range entries {
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: archiveEpoch,
		}
		header.SetMode(0o644)

		w, err := zw.CreateHeader(header)
		if err != nil {
			cleanup()
			return 0, fmt.Errorf("creating archive entry %s: %w", name, err)
		}
		src, err := os.Open(filepath.Join(staging, filepath.FromSlash(name)))
		if err != nil {
			cleanup()
			return 0, fmt.Errorf("opening staged file %s: %w", name, err)
		}
		_, err = io.Copy(w, src)
		_ = src.Close()
		if err != nil {
			cleanup()
			return 0, fmt.Errorf("writing archive entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("finalizing archive: %w", err)
	}
	if err := temp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("syncing archive: %w", err)
	}
	info, err := temp.Stat()
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("stating archive: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("renaming archive: %w", err)
	}
	return info.Size(), nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ReadManifest extracts and decodes the manifest from an existing bundle.
func ReadManifest(archivePath string) (Manifest, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return Manifest{}, fmt.Errorf("opening bundle: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, file := range zr.File {
		if file.Name != ManifestFileName {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return Manifest{}, fmt.Errorf("opening manifest entry: %w", err)
		}
		var buf bytes.Buffer
		_, err = io.Copy(&buf, rc)
		_ = rc.Close()
		if err != nil {
			return Manifest{}, fmt.Errorf("reading manifest entry: %w", err)
		}
		var manifest Manifest
		if err := yaml.Unmarshal(buf.Bytes(), &manifest); err != nil {
			return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
		}
		return manifest, nil
	}
	return Manifest{}, fmt.Errorf("bundle %s has no %s", archivePath, ManifestFileName)
}
