package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// candleDocument is the stored layout of one candle.
type candleDocument struct {
	InsertedAt time.Time `bson:"insts"`
	Timestamp  int64     `bson:"ts"`
	Symbol     string    `bson:"ccy"`
	Period     string    `bson:"period"`
	Open       float64   `bson:"o"`
	Close      float64   `bson:"c"`
	High       float64   `bson:"h"`
	Low        float64   `bson:"l"`
	Volume     float64   `bson:"vol"`
	Amount     float64   `bson:"amt"`
	Count      int64     `bson:"ct"`
}

func newCandleDocument(r models.StorageRecord) candleDocument {
	return candleDocument{
		InsertedAt: r.InsertedAt.UTC(),
		Timestamp:  r.Timestamp,
		Symbol:     r.Symbol,
		Period:     r.Period.Key(),
		Open:       r.Open,
		Close:      r.Close,
		High:       r.High,
		Low:        r.Low,
		Volume:     r.Volume,
		Amount:     r.Amount,
		Count:      r.Count,
	}
}

// MongoCandleStore implements CandleStore on one MongoDB collection.
type MongoCandleStore struct {
	coll *mongo.Collection
}

// NewMongoCandleStore creates the store.
func NewMongoCandleStore(coll *mongo.Collection) *MongoCandleStore {
	return &MongoCandleStore{coll: coll}
}

var _ drepo.CandleStore = (*MongoCandleStore)(nil)

// Target names the collection in messages.
func (s *MongoCandleStore) Target() string {
	return s.coll.Database().Name() + "." + s.coll.Name()
}

// EnsureIndexes creates the unique (ccy, period, ts) index. It is idempotent.
func (s *MongoCandleStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ccy", Value: 1}, {Key: "period", Value: 1}, {Key: "ts", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("ccy_period_ts"),
	})
	if err != nil {
		return fmt.Errorf("create indexes for %s: %w", s.Target(), err)
	}
	return nil
}

// MaxTimestamps returns the last stored timestamp of every series of symbols.
func (s *MongoCandleStore) MaxTimestamps(ctx context.Context, symbols []string) (models.Watermark, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "ccy", Value: bson.D{{Key: "$in", Value: symbols}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "ccy", Value: "$ccy"}, {Key: "period", Value: "$period"}}},
			{Key: "ts", Value: bson.D{{Key: "$max", Value: "$ts"}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate max ts: %w", err)
	}
	defer cur.Close(ctx)

	wm := make(models.Watermark)
	for cur.Next(ctx) {
		var row struct {
			ID struct {
				Symbol string `bson:"ccy"`
				Period string `bson:"period"`
			} `bson:"_id"`
			Timestamp int64 `bson:"ts"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode max ts: %w", err)
		}
		key := models.SeriesKey{Symbol: row.ID.Symbol, Period: models.Period(row.ID.Period)}
		wm[key] = row.Timestamp
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate max ts: %w", err)
	}
	return wm, nil
}

// BulkWrite inserts records. Ordered writes stop at the first error; unordered
// writes go through every record and only fail on errors other than
// duplicate keys.
func (s *MongoCandleStore) BulkWrite(ctx context.Context, records []models.StorageRecord, ordered bool) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = newCandleDocument(r)
	}
	_, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(ordered))
	if err == nil || (!ordered && onlyDuplicateKeys(err)) {
		return nil
	}
	return fmt.Errorf("insert many into %s: %w", s.Target(), err)
}

func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return false
	}
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		switch we.Code {
		case 11000, 11001, 12582:
		default:
			return false
		}
	}
	return true
}

func (s *MongoCandleStore) Health(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// Close is a no-op; the client owning the collection is closed by the app.
func (s *MongoCandleStore) Close() error { return nil }
