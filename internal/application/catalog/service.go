package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/reliq/internal/cachemanager"
	domain "github.com/zjrosen/reliq/internal/domain/catalog"
	"github.com/zjrosen/reliq/internal/hash"
	"github.com/zjrosen/reliq/internal/infrastructure/journal"
	"github.com/zjrosen/reliq/internal/infrastructure/registryfile"
	"github.com/zjrosen/reliq/internal/log"
	"github.com/zjrosen/reliq/internal/pubsub"
)

// maxSaveAttempts bounds the reload-and-retry loop around optimistic
// concurrency conflicts.
const maxSaveAttempts = 3

// Change is the payload published on the event broker after a successful
// mutation.
type Change struct {
	Verb      string
	Artifacts []string
}

// RegisterRequest carries the caller-facing inputs for Register. Hash and
// size are computed here, not by the caller.
type RegisterRequest struct {
	Name           string
	Type           string
	FilePath       string
	InputArtifacts []string
	Metadata       domain.Metadata
}

// VerifyResult reports a content check for one artifact. A hash mismatch
// is data, not an error: Valid is false and Expected/Actual differ.
type VerifyResult struct {
	Name     string `json:"name"`
	Valid    bool   `json:"valid"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Service is the application facade over the artifact catalog. It wires
// the pure domain registry to the filesystem: hashing files, persisting
// through the atomic store, journaling operations, and publishing change
// events.
type Service struct {
	store        *registryfile.Store
	allowedTypes []string

	journal   *journal.Repository
	broker    *pubsub.Broker[Change]
	tracer    trace.Tracer
	verifyTTL time.Duration
	hashCache *cachemanager.ReadThroughCache[string, string, string]
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithJournal records operations in the sqlite journal.
func WithJournal(repo *journal.Repository) Option {
	return func(s *Service) { s.journal = repo }
}

// WithBroker publishes change events after successful mutations.
func WithBroker(b *pubsub.Broker[Change]) Option {
	return func(s *Service) { s.broker = b }
}

// WithTracer emits spans around service operations.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithVerifyCacheTTL sets how long verify hash results are reused. Zero
// disables the cache.
func WithVerifyCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.verifyTTL = ttl }
}

// NewService builds the catalog service over the given store.
func NewService(store *registryfile.Store, allowedTypes []string, opts ...Option) *Service {
	s := &Service{
		store:        store,
		allowedTypes: allowedTypes,
		tracer:       noop.NewTracerProvider().Tracer("noop"),
		verifyTTL:    cachemanager.DefaultExpiration,
	}
	for _, opt := range opts {
		opt(s)
	}

	cache := cachemanager.NewInMemoryCacheManager[string, string]("verify",
		cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	s.hashCache = cachemanager.NewReadThroughCache[string, string, string](cache,
		func(ctx context.Context, path string) (string, error) {
			return hash.File(path)
		}, s.verifyTTL <= 0)

	return s
}

// AllowedTypes returns the configured artifact type set.
func (s *Service) AllowedTypes() []string { return s.allowedTypes }

// Snapshot loads the current registry.
func (s *Service) Snapshot() (domain.Registry, error) {
	return s.store.Load()
}

// Register stats and hashes the file, then appends the artifact to the
// registry. On a concurrent-modification conflict the registry is reloaded
// and the registration replayed, bounded by maxSaveAttempts; validation
// failures are never retried.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (domain.Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.register", trace.WithAttributes(
		attribute.String("artifact.name", req.Name),
		attribute.String("artifact.type", req.Type),
	))
	defer span.End()

	info, err := os.Stat(req.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			err = &domain.FileNotFoundError{Name: req.Name, Path: req.FilePath}
		}
		return domain.Artifact{}, s.fail(ctx, span, journal.VerbRegister, []string{req.Name}, err)
	}

	contentHash, err := hash.File(req.FilePath)
	if err != nil {
		return domain.Artifact{}, s.fail(ctx, span, journal.VerbRegister, []string{req.Name}, err)
	}

	registration := domain.Registration{
		Name:           req.Name,
		Type:           req.Type,
		FilePath:       req.FilePath,
		ContentHash:    contentHash,
		SizeBytes:      info.Size(),
		InputArtifacts: req.InputArtifacts,
		Metadata:       req.Metadata,
	}

	saved, err := s.mutate(ctx, func(reg domain.Registry) (domain.Registry, error) {
		return reg.Register(registration, s.allowedTypes)
	})
	if err != nil {
		return domain.Artifact{}, s.fail(ctx, span, journal.VerbRegister, []string{req.Name}, err)
	}

	artifact, err := saved.Get(req.Name)
	if err != nil {
		return domain.Artifact{}, s.fail(ctx, span, journal.VerbRegister, []string{req.Name}, err)
	}

	log.Info(log.CatRegistry, "artifact registered",
		"name", artifact.Name, "type", artifact.Type, "hash", artifact.ContentHash)
	s.record(ctx, journal.VerbRegister, []string{req.Name}, journal.OutcomeOK, artifact.ContentHash)
	s.publish(pubsub.RegisteredEvent, Change{Verb: journal.VerbRegister, Artifacts: []string{req.Name}})
	return artifact, nil
}

// SaveAndRegister persists the content to req.FilePath, then registers it.
// The write is atomic, and a persist failure aborts before any registry
// mutation.
func (s *Service) SaveAndRegister(ctx context.Context, content io.Reader, req RegisterRequest) (domain.Artifact, error) {
	if err := writeFileAtomic(req.FilePath, content); err != nil {
		return domain.Artifact{}, fmt.Errorf("persisting artifact content: %w", err)
	}
	return s.Register(ctx, req)
}

// Get returns one artifact by name.
func (s *Service) Get(name string) (domain.Artifact, error) {
	reg, err := s.store.Load()
	if err != nil {
		return domain.Artifact{}, err
	}
	return reg.Get(name)
}

// List returns artifacts matching the filter, in registration order.
func (s *Service) List(f domain.Filter) ([]domain.Artifact, error) {
	reg, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return reg.List(f), nil
}

// Latest returns the most recent artifact of the given type.
func (s *Service) Latest(artifactType string) (domain.Artifact, error) {
	reg, err := s.store.Load()
	if err != nil {
		return domain.Artifact{}, err
	}
	return reg.Latest(artifactType)
}

// Verify recomputes the content hash of one artifact and compares it to
// the recorded hash. Hash results are cached keyed by path, size, and
// mtime, so an unchanged file is not re-read within the TTL.
func (s *Service) Verify(ctx context.Context, name string) (VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.verify", trace.WithAttributes(
		attribute.String("artifact.name", name),
	))
	defer span.End()

	reg, err := s.store.Load()
	if err != nil {
		return VerifyResult{}, s.spanErr(span, err)
	}
	artifact, err := reg.Get(name)
	if err != nil {
		return VerifyResult{}, s.spanErr(span, err)
	}
	result, err := s.verifyArtifact(ctx, artifact)
	if err != nil {
		return VerifyResult{}, s.spanErr(span, err)
	}
	return result, nil
}

// VerifyAll verifies every artifact in the catalog, in registration order.
func (s *Service) VerifyAll(ctx context.Context) ([]VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.verify_all")
	defer span.End()

	reg, err := s.store.Load()
	if err != nil {
		return nil, s.spanErr(span, err)
	}

	results := make([]VerifyResult, 0, reg.Len())
	for _, artifact := range reg.Artifacts() {
		result, err := s.verifyArtifact(ctx, artifact)
		if err != nil {
			return nil, s.spanErr(span, err)
		}
		results = append(results, result)
	}
	span.SetAttributes(attribute.Int("artifact.count", len(results)))
	return results, nil
}

func (s *Service) verifyArtifact(ctx context.Context, artifact domain.Artifact) (VerifyResult, error) {
	info, err := os.Stat(artifact.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return VerifyResult{}, &domain.FileNotFoundError{Name: artifact.Name, Path: artifact.FilePath}
		}
		return VerifyResult{}, err
	}

	// Cache key pins size and mtime, so a touched file misses the cache.
	key := fmt.Sprintf("%s|%d|%d", artifact.FilePath, info.Size(), info.ModTime().UnixNano())
	actual, err := s.hashCache.Get(ctx, key, artifact.FilePath, s.verifyTTL)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("hashing %s: %w", artifact.FilePath, err)
	}

	result := VerifyResult{
		Name:     artifact.Name,
		Valid:    actual == artifact.ContentHash,
		Expected: artifact.ContentHash,
		Actual:   actual,
	}
	if !result.Valid {
		log.Warn(log.CatRegistry, "content hash mismatch",
			"name", artifact.Name, "expected", result.Expected, "actual", result.Actual)
	}
	s.record(ctx, journal.VerbVerify, []string{artifact.Name}, journal.OutcomeOK, verifyDetail(result))
	s.publish(pubsub.VerifiedEvent, Change{Verb: journal.VerbVerify, Artifacts: []string{artifact.Name}})
	return result, nil
}

// Prune removes old artifacts of the given type from the registry, keeping
// the keepLatestN newest plus anything still referenced. It returns the
// file paths of the removed artifacts and never unlinks them itself.
func (s *Service) Prune(ctx context.Context, artifactType string, keepLatestN int) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.prune", trace.WithAttributes(
		attribute.String("artifact.type", artifactType),
		attribute.Int("keep", keepLatestN),
	))
	defer span.End()

	var removed []string
	_, err := s.mutate(ctx, func(reg domain.Registry) (domain.Registry, error) {
		var next domain.Registry
		next, removed = reg.Prune(artifactType, keepLatestN)
		if len(removed) == 0 {
			return domain.Registry{}, errNothingToPrune
		}
		return next, nil
	})
	if errors.Is(err, errNothingToPrune) {
		span.SetAttributes(attribute.Int("removed", 0))
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(ctx, span, journal.VerbPrune, nil, err)
	}

	log.Info(log.CatRegistry, "pruned artifacts", "type", artifactType, "removed", len(removed))
	span.SetAttributes(attribute.Int("removed", len(removed)))
	s.record(ctx, journal.VerbPrune, removed, journal.OutcomeOK, "")
	s.publish(pubsub.PrunedEvent, Change{Verb: journal.VerbPrune, Artifacts: removed})
	return removed, nil
}

// errNothingToPrune short-circuits the mutate loop when pruning finds no
// removable artifacts; the registry file is left untouched.
var errNothingToPrune = errors.New("nothing to prune")

// mutate runs load-apply-save with bounded retries. Only a concurrent
// modification of the registry file is retryable: the registry is reloaded
// and the mutation replayed against fresh state. Everything else, including
// validation and corrupt-file errors, is permanent.
func (s *Service) mutate(ctx context.Context, apply func(domain.Registry) (domain.Registry, error)) (domain.Registry, error) {
	return backoff.Retry(ctx, func() (domain.Registry, error) {
		reg, err := s.store.Load()
		if err != nil {
			return domain.Registry{}, backoff.Permanent(err)
		}
		next, err := apply(reg)
		if err != nil {
			return domain.Registry{}, backoff.Permanent(err)
		}
		saved, err := s.store.Save(next)
		if err != nil {
			var conflict *registryfile.ConcurrentModificationError
			if errors.As(err, &conflict) {
				log.Warn(log.CatStore, "registry changed concurrently, retrying",
					"loaded", conflict.Loaded, "found", conflict.Found)
				return domain.Registry{}, err
			}
			return domain.Registry{}, backoff.Permanent(err)
		}
		return saved, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxSaveAttempts),
	)
}

// fail records a failed operation and marks the span before returning the
// error unchanged.
func (s *Service) fail(ctx context.Context, span trace.Span, verb string, artifacts []string, err error) error {
	s.record(ctx, verb, artifacts, journal.OutcomeFailed, err.Error())
	return s.spanErr(span, err)
}

func (s *Service) spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// record journals an operation. Journal failures are logged and swallowed;
// the journal is observational and never fails the operation it describes.
func (s *Service) record(ctx context.Context, verb string, artifacts []string, outcome, detail string) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Record(ctx, verb, artifacts, outcome, detail); err != nil {
		log.ErrorErr(log.CatJournal, "failed to journal operation", err, "verb", verb)
	}
}

func (s *Service) publish(eventType pubsub.EventType, change Change) {
	if s.broker != nil {
		s.broker.Publish(eventType, change)
	}
}

func verifyDetail(r VerifyResult) string {
	if r.Valid {
		return "hash match"
	}
	return fmt.Sprintf("hash mismatch: expected %s, got %s", r.Expected, r.Actual)
}

// writeFileAtomic writes content to path via a temp file in the destination
// directory plus rename.
func writeFileAtomic(path string, content io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".artifact.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := io.Copy(temp, content); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
