// Package mongo reads vouchers from the legacy document store.
package mongo

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/techstore/internal/catalog"
	"github.com/xenking/techstore/internal/domain/voucher"
)

// DefaultCollection is the collection the legacy backend kept vouchers in.
const DefaultCollection = "vouchers"

var _ voucher.Catalog = (*VoucherSource)(nil)

// VoucherSource lists the vouchers of one Mongo collection. Documents are
// rendered as relaxed extended JSON and normalized by catalog.DecodeVoucher,
// so legacy field names and number encodings are handled in one place.
type VoucherSource struct {
	coll *mongo.Collection
}

// NewVoucherSource returns a VoucherSource over coll.
func NewVoucherSource(coll *mongo.Collection) *VoucherSource {
	return &VoucherSource{coll: coll}
}

// Connect opens a client for uri and returns a VoucherSource over
// database.collection. The caller disconnects the client.
func Connect(ctx context.Context, uri, database, collection string) (*VoucherSource, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, errors.Wrap(err, "ping mongo")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return NewVoucherSource(client.Database(database).Collection(collection)), client, nil
}

// List reads every voucher document. A document that cannot be normalized
// fails the whole listing with its _id in the error.
func (s *VoucherSource) List(ctx context.Context) ([]voucher.Voucher, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find vouchers")
	}
	defer func() { _ = cur.Close(ctx) }()

	var list []voucher.Voucher
	for cur.Next(ctx) {
		v, err := decodeDocument(cur.Current)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", cur.Current.Lookup("_id"))
		}
		list = append(list, v)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate vouchers")
	}
	return list, nil
}

func decodeDocument(raw bson.Raw) (voucher.Voucher, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return voucher.Voucher{}, errors.Wrap(err, "render extended json")
	}
	return catalog.DecodeOne(data)
}
