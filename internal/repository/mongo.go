package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Gopher0727/Nexus/internal/model"
)

// guildDocument is the stored shape of a guild in the "Guild" collection.
type guildDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Model          string             `bson:"model"`
	GuildName      string             `bson:"guildName"`
	GuildID        string             `bson:"guildID"`
	Owner          string             `bson:"owner"`
	AnnouncementID string             `bson:"announcementID,omitempty"`
}

func (d *guildDocument) toModel() *model.Guild {
	return &model.Guild{
		ID:             d.ID.Hex(),
		Model:          d.Model,
		GuildName:      d.GuildName,
		GuildID:        d.GuildID,
		Owner:          d.Owner,
		AnnouncementID: d.AnnouncementID,
	}
}

// MongoGuildRepository stores guilds as documents in MongoDB.
type MongoGuildRepository struct {
	coll *mongo.Collection
}

func NewMongoGuildRepository(db *mongo.Database, collection string) *MongoGuildRepository {
	return &MongoGuildRepository{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique index on guildName. Idempotent.
func (r *MongoGuildRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guildName", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("guildName_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create guildName index: %w", err)
	}
	return nil
}

func (r *MongoGuildRepository) FindAll(ctx context.Context) ([]*model.Guild, error) {
	return r.find(ctx, bson.D{})
}

func (r *MongoGuildRepository) FindByName(ctx context.Context, name string) ([]*model.Guild, error) {
	return r.find(ctx, bson.D{{Key: "guildName", Value: name}})
}

func (r *MongoGuildRepository) find(ctx context.Context, filter bson.D) ([]*model.Guild, error) {
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query guilds: %w", err)
	}

	var docs []guildDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode guilds: %w", err)
	}

	guilds := make([]*model.Guild, 0, len(docs))
	for i := range docs {
		guilds = append(guilds, docs[i].toModel())
	}
	return guilds, nil
}

func (r *MongoGuildRepository) FindByID(ctx context.Context, id string) (*model.Guild, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	var doc guildDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find guild %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// Insert stores the guild and writes the generated ObjectID back into guild.ID.
func (r *MongoGuildRepository) Insert(ctx context.Context, guild *model.Guild) error {
	doc := guildDocument{
		ID:             primitive.NewObjectID(),
		Model:          guild.Model,
		GuildName:      guild.GuildName,
		GuildID:        guild.GuildID,
		Owner:          guild.Owner,
		AnnouncementID: guild.AnnouncementID,
	}
	if doc.Model == "" {
		doc.Model = model.ModelGuild
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, guild.GuildName)
		}
		return fmt.Errorf("failed to insert guild: %w", err)
	}

	guild.ID = doc.ID.Hex()
	guild.Model = doc.Model
	return nil
}

func (r *MongoGuildRepository) DeleteByID(ctx context.Context, id string) (*model.Guild, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	var doc guildDocument
	if err := r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete guild %s: %w", id, err)
	}
	return doc.toModel(), nil
}

func (r *MongoGuildRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete guilds: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *MongoGuildRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}
