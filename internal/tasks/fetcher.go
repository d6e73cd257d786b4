package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// Page sizes for the two listing shapes.
const (
	DefaultArtistPageSize  = 1000
	DefaultLibraryPageSize = 200
	DefaultLovedLimit      = 1000
)

// FetchRequest selects a listing and a page of it.
//
// An empty Artist requests the user's whole library.
type FetchRequest struct {
	User   string
	Artist string
	Page   int // 1-based, values below 1 start at the first page
	Limit  int // page size, 0 uses the default for the listing
}

func (r FetchRequest) withDefaults() FetchRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit <= 0 {
		if r.Artist != "" {
			r.Limit = DefaultArtistPageSize
		} else {
			r.Limit = DefaultLibraryPageSize
		}
	}
	return r
}

// PageFetcher performs one listing request per page.
type PageFetcher struct {
	api RemoteAPI
}

// NewPageFetcher creates a fetcher over api.
func NewPageFetcher(api RemoteAPI) *PageFetcher {
	return &PageFetcher{api: api}
}

// FetchPage requests a single page. Artist-scoped requests use the artist history, others the library.
func (f *PageFetcher) FetchPage(ctx context.Context, req FetchRequest) ([]models.RemoteTrack, models.PageMetadata, error) {
	req = req.withDefaults()
	if req.Artist != "" {
		return f.api.ArtistTracks(ctx, req.User, req.Artist, req.Page, req.Limit)
	}
	return f.api.LibraryTracks(ctx, req.User, req.Page, req.Limit)
}

// Pages returns a lazy sequence starting at req.Page.
func (f *PageFetcher) Pages(req FetchRequest) *Pager {
	req = req.withDefaults()
	return &Pager{fetcher: f, req: req, next: req.Page}
}

// Drain collects every page of req. onPage, when set, is called after each non-empty page.
func (f *PageFetcher) Drain(ctx context.Context, req FetchRequest, onPage func(models.PageMetadata)) ([]models.RemoteTrack, error) {
	pager := f.Pages(req)

	var all []models.RemoteTrack
	for {
		tracks, meta, ok, err := pager.Next(ctx)
		if err != nil {
			return all, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, tracks...)
		if onPage != nil {
			onPage(meta)
		}
	}
}

// Pager walks the pages of one listing in increasing order.
//
// The sequence ends after the page whose number reaches the reported total, or at the first empty page,
// whichever comes first. Once ended, Next keeps returning ok=false.
type Pager struct {
	fetcher *PageFetcher
	req     FetchRequest
	next    int
	done    bool
	fetched int
}

// Next fetches the next page. ok is false when the sequence is exhausted; an empty page is never returned with ok=true.
func (p *Pager) Next(ctx context.Context) (tracks []models.RemoteTrack, meta models.PageMetadata, ok bool, err error) {
	if p.done {
		return nil, meta, false, nil
	}
	if ctx.Err() != nil {
		p.done = true
		return nil, meta, false, cancelled(ctx)
	}

	req := p.req
	req.Page = p.next

	tracks, meta, err = p.fetcher.FetchPage(ctx, req)
	if err != nil {
		p.done = true
		if ctx.Err() != nil {
			return nil, meta, false, cancelled(ctx)
		}
		return nil, meta, false, fmt.Errorf("page %d: %w", req.Page, err)
	}

	p.fetched++
	if len(tracks) == 0 {
		p.done = true
		return nil, meta, false, nil
	}

	// Trust the requested page number over a stale or missing one in the payload.
	if meta.Page < req.Page {
		meta.Page = req.Page
	}
	if meta.IsLastPage() {
		p.done = true
	}
	p.next = req.Page + 1
	return tracks, meta, true, nil
}

// Fetched reports how many requests the pager has made.
func (p *Pager) Fetched() int { return p.fetched }

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", shared.ErrCancelled, context.Cause(ctx))
}
