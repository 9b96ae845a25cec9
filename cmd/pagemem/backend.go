// ABOUTME: Page command backends: the local store file or a remote pagemem server.
// ABOUTME: Lets the page subcommands run unchanged against either target.
package main

import (
	"context"

	"github.com/2389-research/pagemem/internal/client"
	"github.com/2389-research/pagemem/internal/index"
	"github.com/2389-research/pagemem/internal/models"
)

type pageBackend interface {
	Store(ctx context.Context, url, summary, title string, timestamp *int64) error
	Similar(ctx context.Context, summary, exclude string, threshold float64, limit int) ([]models.Match, error)
	List(ctx context.Context) ([]models.PageListing, error)
	Stats(ctx context.Context) (models.Stats, error)
	Clear(ctx context.Context) error
	ModelLoaded(ctx context.Context) bool
}

// currentBackend returns the remote server when one is configured, else the local store.
func currentBackend() pageBackend {
	if activeRemote != "" {
		return remoteBackend{c: client.New(activeRemote)}
	}
	return localBackend{s: globalStore}
}

type localBackend struct {
	s *index.Store
}

func (b localBackend) Store(ctx context.Context, url, summary, title string, timestamp *int64) error {
	var opts []index.InsertOption
	if title != "" {
		opts = append(opts, index.WithTitle(title))
	}
	if timestamp != nil {
		opts = append(opts, index.WithTimestamp(*timestamp))
	}
	return b.s.Insert(ctx, url, summary, opts...)
}

func (b localBackend) Similar(ctx context.Context, summary, exclude string, threshold float64, limit int) ([]models.Match, error) {
	return b.s.Query(ctx, summary,
		index.WithExclude(exclude),
		index.WithThreshold(threshold),
		index.WithLimit(limit),
	)
}

func (b localBackend) List(ctx context.Context) ([]models.PageListing, error) {
	return b.s.List(ctx), nil
}

func (b localBackend) Stats(ctx context.Context) (models.Stats, error) {
	return b.s.Stats(ctx), nil
}

func (b localBackend) Clear(ctx context.Context) error {
	return b.s.ClearAll(ctx)
}

func (b localBackend) ModelLoaded(ctx context.Context) bool {
	return b.s.ModelLoaded(ctx)
}

type remoteBackend struct {
	c *client.Client
}

func (b remoteBackend) Store(ctx context.Context, url, summary, title string, timestamp *int64) error {
	return b.c.Store(ctx, client.StoreRequest{URL: url, Summary: summary, Title: title, Timestamp: timestamp})
}

func (b remoteBackend) Similar(ctx context.Context, summary, exclude string, threshold float64, limit int) ([]models.Match, error) {
	return b.c.Similar(ctx, client.SimilarRequest{
		Summary:    summary,
		CurrentURL: exclude,
		Threshold:  &threshold,
		Limit:      limit,
	})
}

func (b remoteBackend) List(ctx context.Context) ([]models.PageListing, error) {
	return b.c.Webpages(ctx)
}

func (b remoteBackend) Stats(ctx context.Context) (models.Stats, error) {
	return b.c.Stats(ctx)
}

func (b remoteBackend) Clear(ctx context.Context) error {
	return b.c.Clear(ctx)
}

func (b remoteBackend) ModelLoaded(ctx context.Context) bool {
	h, err := b.c.Health(ctx)
	return err == nil && h.ModelLoaded
}
