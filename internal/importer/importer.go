package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"pkstore/internal/domain"
)

// Columns lists the CSV header the importer understands. Column order does not matter.
var Columns = []string{"id", "title", "price", "originalPrice", "description", "image", "delivery", "category", "rating", "sellerName"}

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads product rows and upserts them into the product repository.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	newID       func() string
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		newID:       uuid.NewString,
	}
}

// Run upserts every row and returns the number of products written. Rows without an id get a
// fresh one, so re-importing such a file creates duplicates.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"title", "price", "delivery"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if p.ID == "" {
			p.ID = i.newID()
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.ID, err)
		}
		imported++
	}
	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		ID:          pick(record, index, "id"),
		Title:       pick(record, index, "title"),
		Description: pick(record, index, "description"),
		Image:       pick(record, index, "image"),
		Category:    pick(record, index, "category"),
		SellerName:  pick(record, index, "sellerName"),
	}
	if p.Title == "" {
		return p, errors.New("title required")
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil || !price.IsPositive() {
		return p, fmt.Errorf("invalid price %q", pick(record, index, "price"))
	}
	p.Price = price

	if v := pick(record, index, "originalPrice"); v != "" {
		orig, err := decimal.NewFromString(v)
		if err != nil {
			return p, fmt.Errorf("invalid originalPrice %q", v)
		}
		p.OriginalPrice = &orig
	}

	if p.Delivery, err = domain.ParseDelivery(pick(record, index, "delivery")); err != nil {
		return p, err
	}

	if v := pick(record, index, "rating"); v != "" {
		if p.Rating, err = strconv.ParseFloat(v, 64); err != nil {
			return p, fmt.Errorf("invalid rating %q", v)
		}
	}
	return p, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
