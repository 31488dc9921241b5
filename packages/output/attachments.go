package output

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
)

// Attachment is a file written for a check, such as a failure screenshot.
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Path     string `json:"path"`
}

// Attachments writes report attachments under a directory and remembers
// them per owner so formatters can reference them. It implements
// diagnostics.ReportSink.
type Attachments struct {
	dir string
	log logrus.FieldLogger

	mu      sync.Mutex
	byOwner map[string][]Attachment
}

func NewAttachments(dir string, log logrus.FieldLogger) *Attachments {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Attachments{dir: dir, log: log, byOwner: make(map[string][]Attachment)}
}

func (a *Attachments) Dir() string {
	return a.dir
}

// Attach writes data to <dir>/<uuid><ext> and files it under the owner
// carried by ctx.
func (a *Attachments) Attach(ctx context.Context, name, mimeType string, data []byte) error {
	owner, ok := testctx.Owner(ctx)
	if !ok {
		return testctx.ErrContextNotBound
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating attachments directory: %w", err)
	}

	path := filepath.Join(a.dir, uuid.NewString()+extension(mimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing attachment %q: %w", name, err)
	}

	a.mu.Lock()
	a.byOwner[owner] = append(a.byOwner[owner], Attachment{Name: name, MIMEType: mimeType, Path: path})
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{
		"owner": owner,
		"name":  name,
		"path":  path,
		"bytes": len(data),
	}).Debug("Attachment written")
	return nil
}

// For returns the attachments recorded for owner. A nil receiver has none.
func (a *Attachments) For(owner string) []Attachment {
	if a == nil || owner == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Attachment(nil), a.byOwner[owner]...)
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
