// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"time"

	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/observability/logging"
	"github.com/storagegw/storagegw/pkg/observability/metrics"
)

// Processor transforms an object during a Process call. The default is the
// identity function; content transformation itself is out of scope for the
// gateway, which passes bytes through unchanged.
type Processor func(ctx context.Context, obj *blobstore.Object) (*blobstore.Object, error)

// Gateway is the storage orchestrator: it executes each operation against
// the current provider and, on failure, retries exactly once against the
// best healthy alternative. Fallback is stateless across calls — a failed
// primary never changes the current selection, so transient failures
// self-heal while a permanently dead primary costs one extra round trip per
// call until an operator switches providers explicitly.
type Gateway struct {
	reg       *Registry
	sel       *Selector
	log       *logging.Logger
	metrics   *metrics.Metrics
	processor Processor
}

// Options configures optional gateway collaborators.
type Options struct {
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Processor Processor
}

// New creates a gateway over a populated registry and selector.
func New(reg *Registry, sel *Selector, opts Options) *Gateway {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	processor := opts.Processor
	if processor == nil {
		processor = func(_ context.Context, obj *blobstore.Object) (*blobstore.Object, error) {
			return obj, nil
		}
	}
	return &Gateway{
		reg:       reg,
		sel:       sel,
		log:       log,
		metrics:   opts.Metrics,
		processor: processor,
	}
}

// execute runs op against the current provider with single-hop fallback:
// on primary failure it retries once on the best healthy alternative and
// returns that outcome as-is. No further chaining — one retry hop avoids
// cascading failure storms across all providers on every call.
func execute[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context, blobstore.Backend) (T, error)) (T, error) {
	var zero T

	primary, err := g.sel.Current()
	if err != nil {
		return zero, err
	}

	res, err := fn(ctx, primary.Backend())
	g.metrics.RecordOperation(primary.Name(), op, err)
	if err == nil {
		return res, nil
	}

	primaryErr := &OperationError{Provider: primary.Name(), Op: op, Err: err}

	fallback, ok := g.sel.BestAlternative(primary)
	if !ok {
		g.log.Error("operation failed with no fallback available",
			"op", op,
			"provider", primary.Name(),
			"error", err)
		return zero, primaryErr
	}

	g.log.Warn("operation failed, retrying on fallback provider",
		"op", op,
		"provider", primary.Name(),
		"fallback", fallback.Name(),
		"error", err)
	g.metrics.RecordFailover(primary.Name(), fallback.Name())

	res, err = fn(ctx, fallback.Backend())
	g.metrics.RecordOperation(fallback.Name(), op, err)
	if err != nil {
		return zero, &OperationError{Provider: fallback.Name(), Op: op, Err: err}
	}
	return res, nil
}

// executeErr adapts execute for operations without a result payload.
func executeErr(ctx context.Context, g *Gateway, op string, fn func(context.Context, blobstore.Backend) error) error {
	_, err := execute(ctx, g, op, func(ctx context.Context, b blobstore.Backend) (struct{}, error) {
		return struct{}{}, fn(ctx, b)
	})
	return err
}

// Upload stores an object.
func (g *Gateway) Upload(ctx context.Context, obj *blobstore.Object) (*blobstore.ObjectInfo, error) {
	return execute(ctx, g, "upload", func(ctx context.Context, b blobstore.Backend) (*blobstore.ObjectInfo, error) {
		return b.Upload(ctx, obj)
	})
}

// Download returns the raw object bytes.
func (g *Gateway) Download(ctx context.Context, key string) ([]byte, error) {
	return execute(ctx, g, "download", func(ctx context.Context, b blobstore.Backend) ([]byte, error) {
		return b.Download(ctx, key)
	})
}

// Delete removes an object.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	return executeErr(ctx, g, "delete", func(ctx context.Context, b blobstore.Backend) error {
		return b.Delete(ctx, key)
	})
}

// Exists reports whether an object is stored under the key.
func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	return execute(ctx, g, "exists", func(ctx context.Context, b blobstore.Backend) (bool, error) {
		return b.Exists(ctx, key)
	})
}

// GetMetadata returns object metadata without content.
func (g *Gateway) GetMetadata(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	return execute(ctx, g, "get_metadata", func(ctx context.Context, b blobstore.Backend) (*blobstore.ObjectInfo, error) {
		return b.GetMetadata(ctx, key)
	})
}

// UpdateMetadata replaces the user metadata of an object.
func (g *Gateway) UpdateMetadata(ctx context.Context, key string, metadata map[string]string) (*blobstore.ObjectInfo, error) {
	return execute(ctx, g, "update_metadata", func(ctx context.Context, b blobstore.Backend) (*blobstore.ObjectInfo, error) {
		return b.UpdateMetadata(ctx, key, metadata)
	})
}

// List returns objects under a key prefix.
func (g *Gateway) List(ctx context.Context, prefix string, limit int) ([]*blobstore.ObjectInfo, error) {
	return execute(ctx, g, "list", func(ctx context.Context, b blobstore.Backend) ([]*blobstore.ObjectInfo, error) {
		return b.List(ctx, prefix, limit)
	})
}

// SignedURL returns a pre-authorized download URL for an object.
func (g *Gateway) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return execute(ctx, g, "signed_url", func(ctx context.Context, b blobstore.Backend) (string, error) {
		return b.SignedURL(ctx, key, expiry)
	})
}

// SetPublic marks an object as publicly readable.
func (g *Gateway) SetPublic(ctx context.Context, key string) error {
	return executeErr(ctx, g, "set_public", func(ctx context.Context, b blobstore.Backend) error {
		return b.SetPublic(ctx, key)
	})
}

// SetPrivate marks an object as private.
func (g *Gateway) SetPrivate(ctx context.Context, key string) error {
	return executeErr(ctx, g, "set_private", func(ctx context.Context, b blobstore.Backend) error {
		return b.SetPrivate(ctx, key)
	})
}

// Copy duplicates an object under a new key as a download followed by an
// upload. Each step resolves its provider independently, so a failover
// between steps can land the download and the upload on different
// providers. That is accepted behavior given stateless fallback, not a bug.
func (g *Gateway) Copy(ctx context.Context, srcKey, dstKey string) (*blobstore.ObjectInfo, error) {
	info, err := g.GetMetadata(ctx, srcKey)
	if err != nil {
		return nil, err
	}
	data, err := g.Download(ctx, srcKey)
	if err != nil {
		return nil, err
	}
	return g.Upload(ctx, &blobstore.Object{
		Key:         dstKey,
		ContentType: info.ContentType,
		Size:        int64(len(data)),
		Data:        data,
		Metadata:    info.Metadata,
	})
}

// Move copies an object to a new key and deletes the source.
func (g *Gateway) Move(ctx context.Context, srcKey, dstKey string) (*blobstore.ObjectInfo, error) {
	info, err := g.Copy(ctx, srcKey, dstKey)
	if err != nil {
		return nil, err
	}
	if err := g.Delete(ctx, srcKey); err != nil {
		return nil, err
	}
	return info, nil
}

// Rename is an alias of Move.
func (g *Gateway) Rename(ctx context.Context, srcKey, dstKey string) (*blobstore.ObjectInfo, error) {
	return g.Move(ctx, srcKey, dstKey)
}

// Process runs the object through the configured processor and stores the
// result back under the same key. With the default identity processor the
// content is re-uploaded unchanged.
func (g *Gateway) Process(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	info, err := g.GetMetadata(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := g.Download(ctx, key)
	if err != nil {
		return nil, err
	}

	obj := &blobstore.Object{
		Key:         key,
		ContentType: info.ContentType,
		Size:        int64(len(data)),
		Data:        data,
		Metadata:    info.Metadata,
	}
	processed, err := g.processor(ctx, obj)
	if err != nil {
		return nil, err
	}
	return g.Upload(ctx, processed)
}

// Snapshot returns the health view of all providers, with the current
// selection marked.
func (g *Gateway) Snapshot() []ProviderHealth {
	current := g.sel.CurrentName()
	snap := g.reg.Snapshot()
	for i := range snap {
		snap[i].Current = snap[i].Name == current
	}
	return snap
}

// CurrentProvider returns the name of the provider servicing calls.
func (g *Gateway) CurrentProvider() (string, error) {
	p, err := g.sel.Current()
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

// SwitchProvider changes the current provider after a health verification.
func (g *Gateway) SwitchProvider(ctx context.Context, name string) error {
	if err := g.sel.SwitchTo(ctx, name); err != nil {
		return err
	}
	g.log.Info("switched current provider", "provider", name)
	return nil
}

// Close closes every registered backend.
func (g *Gateway) Close(ctx context.Context) error {
	var firstErr error
	for _, p := range g.reg.All() {
		if err := p.Backend().Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
