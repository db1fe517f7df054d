// Package document stores uploaded files and the collections that group
// them. File bytes live on the local filesystem under the configured root;
// metadata lives in the documents table.
package document

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/chatopinion/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuestCollection holds files uploaded by users without a slug.
const GuestCollection = "guest"

// MediaPrefix is the URL path documents are served under.
const MediaPrefix = "/media/"

// Store is the document store backed by a database and a directory.
type Store struct {
	db             *gorm.DB
	root           string
	rootCollection string
	publicURL      string
}

// NewStore returns a Store writing files below root. publicURL is the
// externally visible base URL used to build document links.
func NewStore(db *gorm.DB, root, rootCollection, publicURL string) *Store {
	if rootCollection == "" {
		rootCollection = "Root"
	}
	return &Store{
		db:             db,
		root:           root,
		rootCollection: rootCollection,
		publicURL:      strings.TrimRight(publicURL, "/"),
	}
}

// Root returns the directory files are written to.
func (s *Store) Root() string { return s.root }

// GetOrCreateCollection returns the collection called name, creating it
// under the root collection when it does not exist. Concurrent callers
// asking for the same name all get the same row.
func (s *Store) GetOrCreateCollection(name string) (*models.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("document: collection name is required")
	}
	root, err := s.ensure(s.rootCollection, nil)
	if err != nil {
		return nil, err
	}
	if name == s.rootCollection {
		return root, nil
	}
	return s.ensure(name, &root.ID)
}

func (s *Store) ensure(name string, parentID *uint) (*models.Collection, error) {
	var c models.Collection
	err := s.db.Where("name = ?", name).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document: find collection %q: %w", name, err)
	}

	c = models.Collection{Name: name, ParentID: parentID}
	if err := s.db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&c).Error; err != nil {
		return nil, fmt.Errorf("document: create collection %q: %w", name, err)
	}
	// A concurrent insert wins the conflict; read back whichever row exists.
	var got models.Collection
	if err := s.db.Where("name = ?", name).First(&got).Error; err != nil {
		return nil, fmt.Errorf("document: reload collection %q: %w", name, err)
	}
	return &got, nil
}

// Save writes data to disk and records a document in collection. The
// stored file name is random; name only supplies the extension and title.
func (s *Store) Save(name string, data []byte, collection *models.Collection, uploadedBy *uint) (*models.Document, error) {
	if collection == nil {
		return nil, fmt.Errorf("document: collection is required")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("document: %q is empty", name)
	}

	rel := path.Join("documents", collection.Name, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("document: create directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("document: write %s: %w", rel, err)
	}

	doc := models.Document{
		Title:            TitleFromFilename(name),
		FileName:         filepath.Base(name),
		Path:             rel,
		Size:             int64(len(data)),
		CollectionID:     collection.ID,
		UploadedByUserID: uploadedBy,
	}
	if err := s.db.Create(&doc).Error; err != nil {
		os.Remove(full)
		return nil, fmt.Errorf("document: record %s: %w", rel, err)
	}
	doc.Collection = *collection
	return &doc, nil
}

// URL returns the public link of a stored document.
func (s *Store) URL(doc models.Document) string {
	return s.publicURL + MediaPrefix + doc.Path
}

// TitleFromFilename turns "lab_results-march.pdf" into "Lab Results March".
func TitleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	return cases.Title(language.Und).String(base)
}

// Link is a stored document as shown to API clients.
type Link struct {
	Name       string `json:"name"`
	Attachment string `json:"attachment"`
}

// URLer builds public document URLs.
type URLer interface {
	URL(doc models.Document) string
}

// Links renders docs for clients. A nil u leaves URLs empty. The result is
// never nil.
func Links(u URLer, docs []models.Document) []Link {
	out := make([]Link, 0, len(docs))
	for _, d := range docs {
		l := Link{Name: d.Title}
		if u != nil {
			l.Attachment = u.URL(d)
		}
		out = append(out, l)
	}
	return out
}
