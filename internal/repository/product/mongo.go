package product

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"pkstore/internal/domain"
)

// CollectionName is the MongoDB collection holding product documents.
const CollectionName = "products"

type productDocument struct {
	ID            string                `bson:"_id"`
	Title         string                `bson:"title"`
	Price         primitive.Decimal128  `bson:"price"`
	OriginalPrice *primitive.Decimal128 `bson:"original_price,omitempty"`
	Description   string                `bson:"description"`
	Image         string                `bson:"image"`
	Delivery      string                `bson:"delivery"`
	Category      string                `bson:"category"`
	Rating        float64               `bson:"rating"`
	SellerName    string                `bson:"seller_name"`
	CreatedAt     time.Time             `bson:"created_at"`
}

type mongoRepo struct {
	collection *mongo.Collection
	logger     zerolog.Logger
	now        func() time.Time
}

// NewMongo stores products in one collection. Subscribe needs a replica set for change streams.
func NewMongo(db *mongo.Database, logger zerolog.Logger) Repository {
	return &mongoRepo{
		collection: db.Collection(CollectionName),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *mongoRepo) FetchAll(ctx context.Context) ([]domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var result []domain.Product
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	r.logger.Debug().Int("count", len(result)).Msg("product repo: list")
	return result, nil
}

func (r *mongoRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	p, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *mongoRepo) Create(ctx context.Context, in domain.NewProduct) (*domain.Product, error) {
	p := in.WithID(primitive.NewObjectID().Hex())
	p.CreatedAt = r.now()
	doc, err := newProductDocument(p)
	if err != nil {
		return nil, err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	r.logger.Info().Str("id", p.ID).Str("title", p.Title).Msg("product repo: created")
	return &p, nil
}

// Upsert replaces the document with p's id and keeps the original creation time.
func (r *mongoRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("product repo: upsert requires an id")
	}
	res := p.Clone()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = r.now()
	}
	doc, err := newProductDocument(res)
	if err != nil {
		return nil, err
	}
	update := bson.M{
		"$set": bson.M{
			"title":          doc.Title,
			"price":          doc.Price,
			"original_price": doc.OriginalPrice,
			"description":    doc.Description,
			"image":          doc.Image,
			"delivery":       doc.Delivery,
			"category":       doc.Category,
			"rating":         doc.Rating,
			"seller_name":    doc.SellerName,
		},
		"$setOnInsert": bson.M{"created_at": doc.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored productDocument
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": p.ID}, update, opts).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to upsert product: %w", err)
	}
	res.CreatedAt = stored.CreatedAt
	r.logger.Info().Str("id", res.ID).Msg("product repo: upserted")
	return &res, nil
}

func (r *mongoRepo) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	r.logger.Info().Str("id", id).Msg("product repo: deleted")
	return nil
}

// Subscribe opens a change stream on the collection and re-reads the full list after each event.
func (r *mongoRepo) Subscribe(ctx context.Context, onPush func(Snapshot), onError func(error)) (CancelFunc, error) {
	stream, err := r.collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("failed to watch products: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stream.Close(context.WithoutCancel(subCtx))
		r.watch(subCtx, stream, onPush, onError)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (r *mongoRepo) watch(ctx context.Context, stream *mongo.ChangeStream, onPush func(Snapshot), onError func(error)) {
	var seq uint64
	for {
		products, err := r.FetchAll(ctx)
		if err != nil {
			if ctx.Err() == nil {
				onError(err)
			}
			return
		}
		seq++
		onPush(Snapshot{Seq: seq, Products: products})

		if !stream.Next(ctx) {
			if ctx.Err() == nil {
				err := stream.Err()
				if err == nil {
					err = errors.New("change stream closed")
				}
				r.logger.Warn().Err(err).Msg("product repo: watch")
				onError(err)
			}
			return
		}
		// Drain events that are already buffered so one re-read covers a burst of writes.
		for stream.RemainingBatchLength() > 0 && stream.TryNext(ctx) {
		}
	}
}

func newProductDocument(p domain.Product) (productDocument, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return productDocument{}, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	doc := productDocument{
		ID:          p.ID,
		Title:       p.Title,
		Price:       price,
		Description: p.Description,
		Image:       p.Image,
		Delivery:    string(p.Delivery),
		Category:    p.Category,
		Rating:      p.Rating,
		SellerName:  p.SellerName,
		CreatedAt:   p.CreatedAt,
	}
	if p.OriginalPrice != nil {
		orig, err := primitive.ParseDecimal128(p.OriginalPrice.String())
		if err != nil {
			return productDocument{}, fmt.Errorf("product %s original price: %w", p.ID, err)
		}
		doc.OriginalPrice = &orig
	}
	return doc, nil
}

func (d productDocument) toDomain() (domain.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s price: %w", d.ID, err)
	}
	p := domain.Product{
		ID:          d.ID,
		Title:       d.Title,
		Price:       price,
		Description: d.Description,
		Image:       d.Image,
		Delivery:    domain.Delivery(d.Delivery),
		Category:    d.Category,
		Rating:      d.Rating,
		SellerName:  d.SellerName,
		CreatedAt:   d.CreatedAt,
	}
	if d.OriginalPrice != nil {
		orig, err := decimal.NewFromString(d.OriginalPrice.String())
		if err != nil {
			return domain.Product{}, fmt.Errorf("product %s original price: %w", d.ID, err)
		}
		p.OriginalPrice = &orig
	}
	return p, nil
}
