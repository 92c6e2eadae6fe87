package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// fallback used when a line item carries no description.
const defaultProductName = "Product"

// attachmentExtension is appended to every derived filename.
const attachmentExtension = ".pdf"

// Attachment pairs the filename shown to the customer with the file
// reference (local path or URL) resolved from the catalog.
type Attachment struct {
	Filename string
	FileRef  string
}

// Catalog is an immutable mapping from Stripe price ID to a deliverable
// file reference. Build a new one and swap it in a Store to change it.
type Catalog struct {
	files map[string]string
}

// Load reads and validates a catalog JSON file of the form
// {"price_123": "./files/product1.pdf", ...}.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var files map[string]string
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("catalog %s contains no entries", path)
	}
	for priceID, fileRef := range files {
		if strings.TrimSpace(priceID) == "" {
			return nil, fmt.Errorf("catalog %s contains an empty price ID", path)
		}
		if strings.TrimSpace(fileRef) == "" {
			return nil, fmt.Errorf("catalog %s: price %s has an empty file reference", path, priceID)
		}
	}

	return &Catalog{files: files}, nil
}

// Lookup returns the file reference for a price ID.
func (c *Catalog) Lookup(priceID string) (string, bool) {
	ref, ok := c.files[priceID]
	return ref, ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.files) }

// ResolveAttachments maps line items to attachments, preserving line-item
// order. Items without a catalog entry (or without a price) are skipped
// with a warning rather than failing the order.
func (c *Catalog) ResolveAttachments(items []*stripe.LineItem, logger *zap.Logger) []Attachment {
	attachments := make([]Attachment, 0, len(items))
	for _, item := range items {
		if item.Price == nil || item.Price.ID == "" {
			logger.Warn("Line item has no price ID, skipping",
				zap.String("line_item_id", item.ID),
				zap.String("description", item.Description),
			)
			continue
		}
		fileRef, ok := c.Lookup(item.Price.ID)
		if !ok {
			logger.Warn("No catalog entry for price, skipping line item",
				zap.String("price_id", item.Price.ID),
				zap.String("description", item.Description),
			)
			continue
		}
		name := item.Description
		if name == "" {
			name = defaultProductName
		}
		attachments = append(attachments, Attachment{
			Filename: name + attachmentExtension,
			FileRef:  fileRef,
		})
	}
	return attachments
}

// Store holds the current catalog and allows atomic reloads without
// blocking in-flight requests.
type Store struct {
	path    string
	current atomic.Value // *Catalog
}

// NewStore loads the catalog at path and returns a reloadable store.
func NewStore(path string) (*Store, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(c)
	return s, nil
}

// Current returns the active catalog.
func (s *Store) Current() *Catalog {
	return s.current.Load().(*Catalog)
}

// Reload re-reads the catalog file. On error the previous catalog stays
// active.
func (s *Store) Reload() error {
	c, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}
