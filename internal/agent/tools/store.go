package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SheetRow is one appended row of a worksheet.
type SheetRow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Spreadsheet string    `gorm:"size:255;not null;index:idx_sheet" json:"spreadsheet"`
	Worksheet   string    `gorm:"size:255;not null;index:idx_sheet" json:"worksheet"`
	Data        string    `gorm:"type:text" json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

// KnowledgeDoc is a document served by the local retriever.
type KnowledgeDoc struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Source    string    `gorm:"size:255" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Store backs the sheets tool and the local half of dual search.
type Store struct {
	db *gorm.DB
}

// OpenStore opens a sqlite database and migrates the tool tables.
func OpenStore(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errx.WrapStore(fmt.Errorf("open store: %w", err))
	}
	return NewStore(db)
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&SheetRow{}, &KnowledgeDoc{}); err != nil {
		return nil, errx.WrapStore(fmt.Errorf("failed to auto migrate: %w", err))
	}
	return &Store{db: db}, nil
}

func (s *Store) AppendRow(ctx context.Context, spreadsheet, worksheet string, data map[string]any) (*SheetRow, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	row := &SheetRow{Spreadsheet: spreadsheet, Worksheet: worksheet, Data: string(raw)}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, errx.WrapStore(err)
	}
	return row, nil
}

func (s *Store) Rows(ctx context.Context, spreadsheet, worksheet string) ([]SheetRow, error) {
	var rows []SheetRow
	err := s.db.WithContext(ctx).
		Where("spreadsheet = ? AND worksheet = ?", spreadsheet, worksheet).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	return rows, nil
}

func (s *Store) AddDocuments(ctx context.Context, docs ...KnowledgeDoc) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&docs).Error; err != nil {
		return errx.WrapStore(err)
	}
	return nil
}

const defaultTopK = 3

var _ retriever.Retriever = (*Store)(nil)

// Retrieve ranks knowledge documents by the share of query terms they contain.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := defaultTopK
	o := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if o.TopK != nil && *o.TopK > 0 {
		topK = *o.TopK
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	var docs []KnowledgeDoc
	if err := s.db.WithContext(ctx).Find(&docs).Error; err != nil {
		return nil, errx.WrapStore(err)
	}

	out := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		text := strings.ToLower(d.Title + " " + d.Content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(terms))
		if o.ScoreThreshold != nil && score < *o.ScoreThreshold {
			continue
		}
		doc := &schema.Document{
			ID:       fmt.Sprint(d.ID),
			Content:  d.Content,
			MetaData: map[string]any{"title": d.Title, "source": d.Source},
		}
		out = append(out, doc.WithScore(score))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score() > out[j].Score() })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func queryTerms(q string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		if len([]rune(t)) < 3 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
