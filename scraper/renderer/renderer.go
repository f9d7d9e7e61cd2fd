// Package renderer drives a headless browser to produce fully client-side
// rendered document markup. The collector only ever needs two operations per
// page: navigate once, then re-read the live DOM until the data it is
// waiting for has materialized.
package renderer

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// Session is one open browser page. HTML may be called repeatedly without
// re-navigating; Close tears the whole browser session down.
type Session interface {
	HTML(ctx context.Context) (string, error)
	Close()
}

// Renderer opens a rendered view of a URL.
type Renderer interface {
	Open(ctx context.Context, url string) (Session, error)
}

// Chrome renders pages through a headless Chrome instance via chromedp.
// Each Open call launches its own browser session so that one stuck page
// cannot poison the next.
type Chrome struct {
	headless   bool
	navTimeout time.Duration
}

// NewChrome returns a Chrome renderer. navTimeout bounds the initial
// navigation only; readiness polling is the caller's concern.
func NewChrome(headless bool, navTimeout time.Duration) *Chrome {
	return &Chrome{headless: headless, navTimeout: navTimeout}
}

func (c *Chrome) Open(ctx context.Context, url string) (Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", c.headless))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	navCtx, navCancel := context.WithTimeout(pageCtx, c.navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		pageCancel()
		allocCancel()
		return nil, err
	}

	return &chromeSession{ctx: pageCtx, cancels: []context.CancelFunc{pageCancel, allocCancel}}, nil
}

type chromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var html string
	err := chromedp.Run(s.ctx, chromedp.Evaluate("document.documentElement.outerHTML", &html))
	return html, err
}

func (s *chromeSession) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}
