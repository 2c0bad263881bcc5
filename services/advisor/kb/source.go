// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kb loads knowledge bases from their sources and keeps the
// engine's active rule base current.
//
// # Sources
//
//   - "" or "embedded": the default document compiled into the binary.
//   - "gs://bucket/path/kb.yaml": an object in Google Cloud Storage.
//   - anything else: a local YAML or JSON file.
//
// # Reloading
//
//	┌───────────┐   ┌───────────┐   ┌────────────┐   ┌──────────────┐
//	│ watcher / │──►│ Reloader  │──►│ Source     │──►│ rules.Load   │
//	│ HTTP POST │   │ (single-  │   │ .Fetch     │   │ + version    │
//	└───────────┘   │  flight)  │   └────────────┘   │   check      │
//	                └─────┬─────┘                    └──────┬───────┘
//	                      │        engine.Swap ◄────────────┘
//
// A failed reload leaves the active rule base untouched.
package kb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/rules"
)

// maxDocumentBytes bounds the size of a fetched rule document.
const maxDocumentBytes = 8 << 20

var (
	// ErrDocumentTooLarge indicates a document above maxDocumentBytes.
	ErrDocumentTooLarge = errors.New("rule document too large")

	// ErrInvalidSource indicates a malformed source string.
	ErrInvalidSource = errors.New("invalid knowledge base source")
)

// Source fetches the raw bytes of a rule document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// Load fetches, parses, and compiles the document behind src.
//
// # Outputs
//
//   - *rules.RuleBase: The compiled rule base.
//   - error: A fetch error, or a *rules.LoadError wrapped with the source.
func Load(ctx context.Context, src Source) (*rules.RuleBase, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	doc, err := rules.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src, err)
	}
	rb, err := rules.Load(doc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}
	return rb, nil
}

// SourceOptions configures source construction.
type SourceOptions struct {
	// CredentialsFile is a service account key for gs:// sources. Empty
	// uses application default credentials.
	CredentialsFile string
}

// OpenSource builds a Source from a source string.
//
// The caller must Close the returned source when it implements io.Closer.
func OpenSource(ctx context.Context, spec string, opts SourceOptions) (Source, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "" || spec == "embedded":
		return EmbeddedSource{}, nil
	case strings.HasPrefix(spec, "gs://"):
		return NewGCSSource(ctx, spec, opts.CredentialsFile)
	}
	return FileSource{Path: spec}, nil
}

// =============================================================================
// File Source
// =============================================================================

// FileSource reads a rule document from the local file system.
type FileSource struct {
	Path string
}

// Fetch reads the file.
func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f)
}

// String implements fmt.Stringer.
func (s FileSource) String() string {
	return s.Path
}

// =============================================================================
// GCS Source
// =============================================================================

// GCSSource reads a rule document from a Cloud Storage object.
type GCSSource struct {
	client *storage.Client
	Bucket string
	Object string
}

// NewGCSSource creates a source for a gs://bucket/object URI.
//
// # Inputs
//
//   - ctx: Used to create the storage client.
//   - uri: gs://bucket/object.
//   - credentialsFile: Optional service account key path.
//
// # Outputs
//
//   - *GCSSource: The source. Close it when done.
//   - error: ErrInvalidSource for a malformed URI, a missing key file,
//     or a client creation failure.
func NewGCSSource(ctx context.Context, uri, credentialsFile string) (*GCSSource, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at path %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSSource{client: client, Bucket: bucket, Object: object}, nil
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a gs:// URI", ErrInvalidSource, uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%w: %q must name a bucket and an object", ErrInvalidSource, uri)
	}
	return bucket, object, nil
}

// Fetch downloads the object.
func (s *GCSSource) Fetch(ctx context.Context) ([]byte, error) {
	reader, err := s.client.Bucket(s.Bucket).Object(s.Object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %s: %w", s, err)
	}
	defer reader.Close()
	return readLimited(reader)
}

// String implements fmt.Stringer.
func (s *GCSSource) String() string {
	return "gs://" + s.Bucket + "/" + s.Object
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDocumentBytes {
		return nil, ErrDocumentTooLarge
	}
	return data, nil
}
