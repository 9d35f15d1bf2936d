package contextstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trade-app/internal/logger"
	"trade-app/internal/types"
)

const (
	contextsCollection  = "contexts"
	revisionsCollection = "context_revisions"
)

type positionDoc struct {
	Qty     string `bson:"qty"`
	AvgCost string `bson:"avg_cost"`
}

type materialsDoc struct {
	URLs     []string         `bson:"urls"`
	Memo     string           `bson:"memo"`
	Assets   []types.AssetRef `bson:"assets"`
	Excerpts []types.Excerpt  `bson:"excerpts"`
}

type contextDoc struct {
	Symbol      string       `bson:"_id"`
	Seq         int64        `bson:"seq"`
	DisplayName string       `bson:"display_name,omitempty"`
	Summary     string       `bson:"summary"`
	Materials   materialsDoc `bson:"materials"`
	Position    *positionDoc `bson:"position,omitempty"`
	RevisionID  string       `bson:"revision_id"`
	CreatedAt   time.Time    `bson:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at"`
}

type revisionDoc struct {
	ID        string     `bson:"_id"`
	Symbol    string     `bson:"symbol"`
	Seq       int64      `bson:"seq"`
	CreatedAt time.Time  `bson:"created_at"`
	Context   contextDoc `bson:"context"`
}

func toDoc(c types.SymbolContext, seq int64) contextDoc {
	d := contextDoc{
		Symbol:      c.Symbol,
		Seq:         seq,
		DisplayName: c.DisplayName,
		Summary:     c.Summary,
		Materials: materialsDoc{
			URLs:     c.Materials.URLs,
			Memo:     c.Materials.Memo,
			Assets:   c.Materials.Assets,
			Excerpts: c.Materials.Excerpts,
		},
		RevisionID: c.RevisionID,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.Position != nil {
		d.Position = &positionDoc{Qty: c.Position.Qty.String(), AvgCost: c.Position.AvgCost.String()}
	}
	return d
}

func fromDoc(d contextDoc) (types.SymbolContext, error) {
	c := types.SymbolContext{
		Symbol:      d.Symbol,
		DisplayName: d.DisplayName,
		Summary:     d.Summary,
		Materials: types.Materials{
			URLs:     d.Materials.URLs,
			Memo:     d.Materials.Memo,
			Assets:   d.Materials.Assets,
			Excerpts: d.Materials.Excerpts,
		},
		RevisionID: d.RevisionID,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.Position != nil {
		qty, err := decimal.NewFromString(d.Position.Qty)
		if err != nil {
			return c, fmt.Errorf("decode position qty of %s: %w", d.Symbol, err)
		}
		cost, err := decimal.NewFromString(d.Position.AvgCost)
		if err != nil {
			return c, fmt.Errorf("decode position avg_cost of %s: %w", d.Symbol, err)
		}
		c.Position = &types.Position{Qty: qty, AvgCost: cost}
	}
	return Clone(c), nil
}

// MongoStore keeps contexts in MongoDB. Binary assets are stored inline.
type MongoStore struct {
	client    *mongo.Client
	contexts  *mongo.Collection
	revisions *mongo.Collection
	now       func() time.Time
}

// OpenMongo connects to uri and prepares the collections of database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:    client,
		contexts:  db.Collection(contextsCollection),
		revisions: db.Collection(revisionsCollection),
		now:       time.Now,
	}

	_, err = s.revisions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "seq", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create revision index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) load(ctx context.Context, symbol string) (*contextDoc, error) {
	var d contextDoc
	err := s.contexts.FindOne(ctx, bson.M{"_id": symbol}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load context %s: %w", symbol, err)
	}
	return &d, nil
}

// Upsert writes the revision before the current record; a failure between the
// two leaves an orphan revision but never a current record without history.
func (s *MongoStore) Upsert(ctx context.Context, symbol string, upd types.ContextUpdate) (*types.SymbolContext, error) {
	curDoc, err := s.load(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var (
		cur *types.SymbolContext
		seq int64
	)
	if curDoc != nil {
		c, err := fromDoc(*curDoc)
		if err != nil {
			return nil, err
		}
		cur = &c
		seq = curDoc.Seq
	}

	next := Merge(cur, symbol, upd, stamp(s.now()))
	if err := Validate(next); err != nil {
		return nil, err
	}
	seq++
	next.RevisionID = uuid.NewString()

	doc := toDoc(next, seq)
	rev := revisionDoc{ID: next.RevisionID, Symbol: symbol, Seq: seq, CreatedAt: next.UpdatedAt, Context: doc}
	if _, err := s.revisions.InsertOne(ctx, rev); err != nil {
		return nil, fmt.Errorf("write revision %s: %w", rev.ID, err)
	}
	_, err = s.contexts.ReplaceOne(ctx, bson.M{"_id": symbol}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("write context %s: %w", symbol, err)
	}

	logger.Debug(ctx, "Context stored", "symbol", symbol, "revision", rev.ID, "seq", seq)
	out := Clone(next)
	return &out, nil
}

func (s *MongoStore) Get(ctx context.Context, symbol string) (*types.SymbolContext, error) {
	d, err := s.load(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: context %s", types.ErrNotFound, symbol)
	}
	c, err := fromDoc(*d)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) List(ctx context.Context, opts types.ListOptions) ([]types.SymbolContext, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.ExcludeBinary {
		findOpts.SetProjection(bson.M{"materials.assets.data": 0})
	}

	cursor, err := s.contexts.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	var docs []contextDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode contexts: %w", err)
	}

	out := make([]types.SymbolContext, 0, len(docs))
	for _, d := range docs {
		c, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *MongoStore) History(ctx context.Context, symbol string) ([]types.RevisionInfo, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetProjection(bson.M{"context": 0})

	cursor, err := s.revisions.Find(ctx, bson.M{"symbol": symbol}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list revisions %s: %w", symbol, err)
	}
	var revs []revisionDoc
	if err := cursor.All(ctx, &revs); err != nil {
		return nil, fmt.Errorf("decode revisions %s: %w", symbol, err)
	}

	out := make([]types.RevisionInfo, 0, len(revs))
	for _, r := range revs {
		out = append(out, types.RevisionInfo{ID: r.ID, Symbol: r.Symbol, UpdatedAt: r.CreatedAt.UTC()})
	}
	return out, nil
}

func (s *MongoStore) GetRevision(ctx context.Context, id string) (*types.SymbolContext, error) {
	var rev revisionDoc
	err := s.revisions.FindOne(ctx, bson.M{"_id": id}).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: revision %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load revision %s: %w", id, err)
	}
	c, err := fromDoc(rev.Context)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) Delete(ctx context.Context, symbol string) error {
	res, err := s.contexts.DeleteOne(ctx, bson.M{"_id": symbol})
	if err != nil {
		return fmt.Errorf("delete context %s: %w", symbol, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: context %s", types.ErrNotFound, symbol)
	}
	revs, err := s.revisions.DeleteMany(ctx, bson.M{"symbol": symbol})
	if err != nil {
		return fmt.Errorf("delete revisions %s: %w", symbol, err)
	}
	logger.Debug(ctx, "Context deleted", "symbol", symbol, "revisions", revs.DeletedCount)
	return nil
}

// DeleteRevision drops one snapshot. Removing the newest snapshot rolls the
// current record back to the previous one, or deletes it when none remain.
func (s *MongoStore) DeleteRevision(ctx context.Context, id string) error {
	var rev revisionDoc
	err := s.revisions.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"context": 0})).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: revision %s", types.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load revision %s: %w", id, err)
	}

	cur, err := s.load(ctx, rev.Symbol)
	if err != nil {
		return err
	}

	if cur != nil && cur.RevisionID == id {
		var prev revisionDoc
		err := s.revisions.FindOne(ctx,
			bson.M{"symbol": rev.Symbol, "_id": bson.M{"$ne": id}},
			options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}}),
		).Decode(&prev)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			if _, err := s.contexts.DeleteOne(ctx, bson.M{"_id": rev.Symbol}); err != nil {
				return fmt.Errorf("delete context %s: %w", rev.Symbol, err)
			}
		case err != nil:
			return fmt.Errorf("load previous revision of %s: %w", rev.Symbol, err)
		default:
			restored := prev.Context
			restored.Seq = cur.Seq
			if _, err := s.contexts.ReplaceOne(ctx, bson.M{"_id": rev.Symbol}, restored); err != nil {
				return fmt.Errorf("roll back context %s: %w", rev.Symbol, err)
			}
		}
	}

	if _, err := s.revisions.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete revision %s: %w", id, err)
	}
	logger.Debug(ctx, "Revision deleted", "symbol", rev.Symbol, "revision", id)
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
