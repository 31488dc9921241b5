// Package diagnostics collects evidence from a failed test's browser before it
// is torn down and hands it to a report sink.
package diagnostics

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
)

const (
	// ScreenshotName labels the failure screenshot attachment.
	ScreenshotName = "Failure Screenshot"
	// ScreenshotMIME is the attachment type of screenshots.
	ScreenshotMIME = "image/png"
)

// ReportSink accepts attachments for the test carried by ctx.
type ReportSink interface {
	Attach(ctx context.Context, name, mimeType string, data []byte) error
}

// Capturer takes failure screenshots of the bound page.
type Capturer struct {
	store *testctx.Store
	sink  ReportSink
	log   logrus.FieldLogger
}

// NewCapturer returns a Capturer. A nil logger discards.
func NewCapturer(store *testctx.Store, sink ReportSink, log logrus.FieldLogger) *Capturer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Capturer{store: store, sink: sink, log: log}
}

// CaptureOnFailure attaches a full-page screenshot of the bound page. It
// reports whether an attachment was made and never fails the caller: errors
// and panics from the page or the sink are logged.
func (c *Capturer) CaptureOnFailure(ctx context.Context, rec outcome.Record) (attached bool) {
	log := c.log.WithFields(logrus.Fields{
		"test":    rec.Name,
		"outcome": rec.Outcome.String(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("panic: %v", r)).Error("Failure screenshot could not be captured")
			attached = false
		}
	}()

	page, err := c.store.Page(ctx)
	if err != nil {
		log.WithError(err).Warn("No browser bound, skipping failure screenshot")
		return false
	}
	if c.sink == nil {
		log.Debug("No report sink configured, skipping failure screenshot")
		return false
	}

	data, err := page.Screenshot(true)
	if err != nil {
		log.WithError(err).Error("Failure screenshot could not be captured")
		return false
	}

	if err := c.sink.Attach(ctx, ScreenshotName, ScreenshotMIME, data); err != nil {
		log.WithError(err).Error("Failure screenshot could not be attached")
		return false
	}

	log.WithField("bytes", len(data)).Info("Attached failure screenshot")
	return true
}
