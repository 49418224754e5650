package convert

import (
	"context"
)

// Registry dispatches an Input to the first Converter that claims it and
// wraps the call with spec.md §4.2's pipeline: size validation, a
// timeout-bounded invocation, canonicalization, truncation, and mirror
// hash computation. Native converters (markdown, text) are registered
// ahead of adapters so a plain-text file never takes the adapter path.
type Registry struct {
	converters []Converter
	limits     Limits
}

// NewRegistry builds the default registry: native passthrough converters
// first, then the HTML, PDF, XLSX, and source-code adapters.
func NewRegistry() *Registry {
	return &Registry{
		converters: []Converter{
			newMarkdownConverter(),
			newTextConverter(),
			newHTMLConverter(),
			newPDFConverter(),
			newXLSXConverter(),
			newCodeConverter(),
		},
		limits: DefaultLimits(),
	}
}

// WithLimits returns a copy of the registry using the given limits instead
// of DefaultLimits.
func (r *Registry) WithLimits(limits Limits) *Registry {
	return &Registry{converters: r.converters, limits: limits}
}

// Register appends a converter, checked after all previously registered
// ones. Used by callers that need to add format support; an earlier
// converter that claims the same input still wins.
func (r *Registry) Register(c Converter) {
	r.converters = append(r.converters, c)
}

// Lookup returns the first converter that claims mime/ext, without running
// the conversion pipeline.
func (r *Registry) Lookup(mime, ext string) (Converter, bool) {
	for _, c := range r.converters {
		if c.CanHandle(mime, ext) {
			return c, true
		}
	}
	return nil, false
}

// Convert runs the full pipeline for one input: reject oversized content,
// dispatch to the first matching converter under a bounded timeout,
// canonicalize and truncate its markdown, then stamp the mirror hash that
// identifies this document's content for dedup and re-ingestion.
func (r *Registry) Convert(ctx context.Context, in Input) (*ConversionArtifact, error) {
	if r.limits.MaxBytes > 0 && int64(len(in.Content)) > r.limits.MaxBytes {
		return nil, TooLarge("input exceeds max conversion size")
	}

	converter, ok := r.Lookup(in.Mime, in.Ext)
	if !ok {
		return nil, Unsupported(in.Mime, in.Ext)
	}

	artifact, err := r.invoke(ctx, converter, in)
	if err != nil {
		return nil, err
	}

	canonical := canonicalize(artifact.Markdown)
	canonical, wasTruncated := truncate(canonical, r.limits.MaxOutputChars)
	if wasTruncated {
		canonical = canonicalize(canonical)
	}

	artifact.Markdown = canonical
	artifact.MirrorHash = mirrorHash(canonical)
	if artifact.Meta == nil {
		artifact.Meta = map[string]string{}
	}
	artifact.Meta["converterID"] = converter.ID()
	artifact.Meta["converterVersion"] = converter.Version()
	if wasTruncated {
		artifact.Meta["truncated"] = "true"
	}

	return artifact, nil
}

func (r *Registry) invoke(ctx context.Context, c Converter, in Input) (*ConversionArtifact, error) {
	timeout := r.limits.Timeout
	if timeout <= 0 {
		timeout = DefaultLimits().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		artifact *ConversionArtifact
		err      error
	}
	done := make(chan result, 1)
	go func() {
		artifact, err := c.Convert(ctx, in)
		done <- result{artifact, err}
	}()

	select {
	case <-ctx.Done():
		return nil, Timeout(ctx.Err())
	case res := <-done:
		if res.err != nil {
			if convErr, ok := res.err.(*ConvertError); ok {
				return nil, convErr
			}
			return nil, Internal("converter returned an unclassified error", res.err)
		}
		if res.artifact == nil {
			return nil, Internal("converter returned a nil artifact with no error", nil)
		}
		return res.artifact, nil
	}
}
