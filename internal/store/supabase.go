// Package store talks to the backing Supabase project: the events table over
// PostgREST and the media bucket over the storage API, plus a local SQLite
// journal for run state and classification caching.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/wearevision/wav-btl-ingest/internal/media"
	"github.com/wearevision/wav-btl-ingest/internal/payload"
	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// ClientOpts configures the Supabase client.
type ClientOpts struct {
	BaseURL string
	Key     string
	Table   string
	Bucket  string
	// Retries bounds transient-failure retries; WaitTime is the initial
	// backoff between attempts. Timeout applies per request.
	Retries  int
	WaitTime time.Duration
	Timeout  time.Duration
}

// Client is a thin Supabase REST client. Event writes are upserts keyed by
// slug, so re-running the pipeline for the same event overwrites instead of
// duplicating.
type Client struct {
	httpClient *resty.Client
	baseURL    string
	key        string
	table      string
	bucket     string
}

// NewClient creates a Supabase client with bounded retry on transient
// failures.
func NewClient(opts ClientOpts) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		key:     opts.Key,
		table:   opts.Table,
		bucket:  opts.Bucket,
	}
	if c.table == "" {
		c.table = "events"
	}
	if c.bucket == "" {
		c.bucket = "events"
	}

	c.httpClient = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.WaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeaders(map[string]string{
			"Authorization": "Bearer " + opts.Key,
			"apikey":        opts.Key,
		})

	return c
}

// UpsertEvent writes the payload to the events table keyed by slug.
// Submitting the same slug twice leaves exactly one row carrying the latest
// field values. Returns the stored representation.
func (c *Client) UpsertEvent(ctx context.Context, p *payload.Payload) (json.RawMessage, error) {
	var result json.RawMessage
	res, err := c.httpClient.NewRequest().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "resolution=merge-duplicates,return=representation").
		SetQueryParam("on_conflict", "slug").
		SetBody(p).
		SetResult(&result).
		Post("/rest/v1/" + c.table)
	if err != nil {
		return nil, &wav.UpstreamError{Service: "supabase", Err: err}
	}
	if res.IsError() {
		return nil, &wav.UpstreamError{
			Service: "supabase",
			Err:     fmt.Errorf("upsert failed: %s (status: %d)", res.String(), res.StatusCode()),
		}
	}

	log.Info().Str("slug", p.Slug).Str("table", c.table).Msg("event upserted")
	return result, nil
}

// DeleteAll purges every row from the events table. Used by the publish CLI
// before a full re-ingest.
func (c *Client) DeleteAll(ctx context.Context) error {
	res, err := c.httpClient.NewRequest().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("slug", "not.is.null").
		Delete("/rest/v1/" + c.table)
	if err != nil {
		return &wav.UpstreamError{Service: "supabase", Err: err}
	}
	if res.IsError() {
		return &wav.UpstreamError{
			Service: "supabase",
			Err:     fmt.Errorf("purge failed: %s (status: %d)", res.String(), res.StatusCode()),
		}
	}
	log.Info().Str("table", c.table).Msg("events table purged")
	return nil
}

// EnsureBucket creates the storage bucket if it does not exist. Conflict and
// permission responses for an already-existing bucket are not errors.
func (c *Client) EnsureBucket(ctx context.Context) error {
	res, err := c.httpClient.NewRequest().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"name": c.bucket, "public": true}).
		Post("/storage/v1/bucket")
	if err != nil {
		return &wav.UpstreamError{Service: "supabase", Err: err}
	}
	switch {
	case res.StatusCode() == http.StatusOK, res.StatusCode() == http.StatusConflict:
		return nil
	case res.StatusCode() == http.StatusBadRequest &&
		(strings.Contains(res.String(), "Duplicate") || strings.Contains(res.String(), "Unauthorized")):
		return nil
	case res.StatusCode() == http.StatusForbidden:
		// The role cannot create buckets; assume it already exists.
		return nil
	case res.IsError():
		return &wav.UpstreamError{
			Service: "supabase",
			Err:     fmt.Errorf("ensure bucket failed: %s (status: %d)", res.String(), res.StatusCode()),
		}
	}
	return nil
}

// UploadObject uploads a local file to the bucket under destPath with upsert
// semantics and returns its public URL.
func (c *Client) UploadObject(ctx context.Context, localPath, destPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", &wav.InputError{Msg: "reading " + localPath + ": " + err.Error()}
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := c.httpClient.NewRequest().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(data).
		Put(fmt.Sprintf("/storage/v1/object/%s/%s", c.bucket, destPath))
	if err != nil {
		return "", &wav.UpstreamError{Service: "supabase", Err: err}
	}
	if res.IsError() {
		return "", &wav.UpstreamError{
			Service: "supabase",
			Err:     fmt.Errorf("upload %s failed: %s (status: %d)", destPath, res.String(), res.StatusCode()),
		}
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, destPath), nil
}

// Resolve implements media.Resolver by uploading raw assets under the slug
// prefix and returning their public URLs. The first image becomes the cover;
// gallery order follows asset order.
func (c *Client) Resolve(ctx context.Context, slug string, assets media.Assets) (media.Bundle, error) {
	if err := c.EnsureBucket(ctx); err != nil {
		return media.Bundle{}, err
	}

	var bundle media.Bundle

	if len(assets.Images) > 0 {
		cover := assets.Images[0]
		url, err := c.UploadObject(ctx, cover, slug+"/cover"+extOr(cover, ".webp"))
		if err != nil {
			return media.Bundle{}, err
		}
		bundle.Cover = url
	}

	if assets.Logo != "" {
		url, err := c.UploadObject(ctx, assets.Logo, slug+"/logo"+extOr(assets.Logo, ".png"))
		if err != nil {
			return media.Bundle{}, err
		}
		bundle.Logo = url
	}

	idx := 0
	for _, item := range append(append([]string{}, assets.Images...), assets.Videos...) {
		dest := fmt.Sprintf("%s/gallery_%02d%s", slug, idx, extOr(item, ".webp"))
		url, err := c.UploadObject(ctx, item, dest)
		if err != nil {
			return media.Bundle{}, err
		}
		bundle.Gallery = append(bundle.Gallery, url)
		idx++
	}

	log.Info().Str("slug", slug).Int("gallery", len(bundle.Gallery)).Msg("media uploaded")
	return bundle, nil
}

func extOr(path, fallback string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return fallback
}
