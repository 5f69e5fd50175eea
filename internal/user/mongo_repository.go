// AngelaMos | 2026
// mongo_repository.go

package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
)

const collectionName = "users"

var errUnexpectedID = errors.New("unexpected inserted id type")

type userDoc struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	User `bson:",inline"`
}

func (d *userDoc) toUser() *User {
	u := d.User
	u.ID = d.ID.Hex()
	return &u
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(collectionName)}
}

// EnsureMongoIndexes creates the unique email index and the lookup indexes used
// by token and reset queries.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "tokens.accessToken", Value: 1}},
			Options: options.Index().SetName("idx_tokens_access"),
		},
		{
			Keys: bson.D{{Key: "passwordResetToken", Value: 1}},
			Options: options.Index().
				SetName("idx_reset_token").
				SetSparse(true),
		},
	}

	if _, err := db.Collection(collectionName).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *mongoRepository) Create(ctx context.Context, user *User) error {
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Tokens == nil {
		user.Tokens = TokenList{}
	}

	res, err := r.coll.InsertOne(ctx, userDoc{User: *user})
	if err != nil {
		return core.MongoErr("create user", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("create user: %w", errUnexpectedID)
	}
	user.ID = oid.Hex()
	return nil
}

func (r *mongoRepository) GetByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}

	return r.findOne(ctx, "get user", bson.M{"_id": oid})
}

func (r *mongoRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "get user by email", bson.M{"email": NormalizeEmail(email)})
}

func (r *mongoRepository) PushToken(
	ctx context.Context,
	id string,
	token AuthToken,
	now time.Time,
) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("push token: %w", core.ErrNotFound)
	}

	// One pipeline update: keep unexpired entries other than this token, then
	// append it. $addToSet and $pull cannot target the same array in one update.
	kept := bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$tokens", bson.A{}}},
		"as":    "t",
		"cond": bson.M{"$and": bson.A{
			bson.M{"$gt": bson.A{"$$t.expiresAt", now}},
			bson.M{"$ne": bson.A{"$$t.accessToken", token.AccessToken}},
		}},
	}}
	entry := bson.M{
		"accessToken": bson.M{"$literal": token.AccessToken},
		"generatedAt": token.GeneratedAt,
		"expiresAt":   token.ExpiresAt,
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"tokens":    bson.M{"$concatArrays": bson.A{kept, bson.A{entry}}},
			"updatedAt": now,
		}}},
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return core.MongoErr("push token", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("push token: %w", core.ErrNotFound)
	}
	return nil
}

func (r *mongoRepository) PullToken(ctx context.Context, id, accessToken string) error {
	return r.updateByID(ctx, "pull token", id, bson.M{
		"$pull": bson.M{"tokens": bson.M{"accessToken": accessToken}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *mongoRepository) PullAllTokens(ctx context.Context, id, keep string) error {
	return r.updateByID(ctx, "pull all tokens", id, pullAllExcept(keep, bson.M{
		"updatedAt": time.Now().UTC(),
	}))
}

func (r *mongoRepository) FindByToken(
	ctx context.Context,
	id, accessToken string,
) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("find by token: %w", core.ErrNotFound)
	}

	return r.findOne(ctx, "find by token", bson.M{
		"_id":                oid,
		"tokens.accessToken": accessToken,
	})
}

func (r *mongoRepository) SavePassword(ctx context.Context, user *User) error {
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("save password: %w", err)
	}

	return r.updateByID(ctx, "save password", user.ID, bson.M{
		"$set": bson.M{
			"passwordHash": user.PasswordHash,
			"updatedAt":    time.Now().UTC(),
		},
	})
}

func (r *mongoRepository) ChangePassword(ctx context.Context, user *User, keep string) error {
	if err := user.BeforeSave(); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return r.updateByID(ctx, "change password", user.ID, pullAllExcept(keep, bson.M{
		"passwordHash": user.PasswordHash,
		"updatedAt":    time.Now().UTC(),
	}))
}

func (r *mongoRepository) SetResetToken(
	ctx context.Context,
	email, digest string,
	expires time.Time,
) (*User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"email": NormalizeEmail(email)},
		bson.M{"$set": bson.M{
			"passwordResetToken":   digest,
			"passwordResetExpires": expires,
			"updatedAt":            time.Now().UTC(),
		}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, core.MongoErr("set reset token", err)
	}

	return doc.toUser(), nil
}

func (r *mongoRepository) ConsumeResetToken(
	ctx context.Context,
	digest string,
	now time.Time,
	newPassword string,
) (*User, error) {
	hash, err := hashForSave(newPassword)
	if err != nil {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{
			"passwordResetToken":   digest,
			"passwordResetExpires": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{
			"passwordHash":         hash,
			"passwordResetToken":   nil,
			"passwordResetExpires": nil,
			"tokens":               bson.A{},
			"updatedAt":            now,
		}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, core.MongoErr("consume reset token", err)
	}

	return doc.toUser(), nil
}

func (r *mongoRepository) Stats(ctx context.Context) (Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$role"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "active", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$status", StatusActive}}}, 1, 0,
				}},
			}}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, core.MongoErr("user stats", err)
	}
	defer cur.Close(ctx) //nolint:errcheck // read-only cursor

	var rows []struct {
		Role   string `bson:"_id"`
		Total  int64  `bson:"total"`
		Active int64  `bson:"active"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Stats{}, core.MongoErr("user stats", err)
	}

	stats := Stats{ByRole: make(map[string]int64, len(rows))}
	for _, row := range rows {
		stats.Total += row.Total
		stats.Active += row.Active
		stats.ByRole[row.Role] = row.Total
	}
	return stats, nil
}

func (r *mongoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *mongoRepository) findOne(ctx context.Context, op string, filter bson.M) (*User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, core.MongoErr(op, err)
	}
	return doc.toUser(), nil
}

func (r *mongoRepository) updateByID(ctx context.Context, op, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return core.MongoErr(op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func pullAllExcept(keep string, set bson.M) bson.M {
	if keep == "" {
		set["tokens"] = bson.A{}
		return bson.M{"$set": set}
	}
	return bson.M{
		"$set":  set,
		"$pull": bson.M{"tokens": bson.M{"accessToken": bson.M{"$ne": keep}}},
	}
}

var _ Repository = (*mongoRepository)(nil)
