package repository

import (
	"context"
	"errors"
	"time"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
	"github.com/abate-Agegnehu/musiccollectionbackend/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type musicDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Title        string             `bson:"title"`
	Artist       string             `bson:"artist"`
	Email        string             `bson:"email"`
	Avatar       string             `bson:"avatar"`
	CloudinaryID string             `bson:"cloudinary_id"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *musicDocument) toModel() *model.Music {
	return &model.Music{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		Artist:       d.Artist,
		Email:        d.Email,
		Avatar:       d.Avatar,
		CloudinaryID: d.CloudinaryID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoMusicRepository stores music records in a MongoDB collection.
type MongoMusicRepository struct {
	coll *mongo.Collection
}

// NewMongoMusicRepository creates a repository over coll.
func NewMongoMusicRepository(coll *mongo.Collection) *MongoMusicRepository {
	return &MongoMusicRepository{coll: coll}
}

func (r *MongoMusicRepository) Create(ctx context.Context, m *model.Music) error {
	if m.ID == "" {
		m.ID = model.NewMusicID()
	}
	oid, err := primitive.ObjectIDFromHex(m.ID)
	if err != nil {
		return apperrors.Validation("Invalid music ID format")
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	m.CreatedAt, m.UpdatedAt = now, now

	doc := musicDocument{
		ID:           oid,
		Title:        m.Title,
		Artist:       m.Artist,
		Email:        m.Email,
		Avatar:       m.Avatar,
		CloudinaryID: m.CloudinaryID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return apperrors.Upstream("insert music", err)
	}
	return nil
}

func (r *MongoMusicRepository) FindByID(ctx context.Context, id string) (*model.Music, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.Validation("Invalid music ID format")
	}

	var doc musicDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Upstream("find music", err)
	}
	return doc.toModel(), nil
}

func (r *MongoMusicRepository) FindByIDForWrite(ctx context.Context, id string) (*model.Music, error) {
	return r.FindByID(ctx, id)
}

func (r *MongoMusicRepository) FindByEmail(ctx context.Context, email string) ([]*model.Music, error) {
	return r.find(ctx, bson.M{"email": email})
}

func (r *MongoMusicRepository) FindAll(ctx context.Context) ([]*model.Music, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoMusicRepository) find(ctx context.Context, filter bson.M) ([]*model.Music, error) {
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, apperrors.Upstream("find music", err)
	}
	defer cursor.Close(ctx)

	var docs []musicDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperrors.Upstream("decode music", err)
	}

	musics := make([]*model.Music, 0, len(docs))
	for i := range docs {
		musics = append(musics, docs[i].toModel())
	}
	return musics, nil
}

func (r *MongoMusicRepository) UpdateByID(ctx context.Context, id string, fields model.MusicFields) (*model.Music, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.Validation("Invalid music ID format")
	}

	update := bson.M{"$set": bson.M{
		"title":         fields.Title,
		"artist":        fields.Artist,
		"email":         fields.Email,
		"avatar":        fields.Avatar,
		"cloudinary_id": fields.CloudinaryID,
		"updatedAt":     time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc musicDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Upstream("update music", err)
	}
	return doc.toModel(), nil
}

func (r *MongoMusicRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, apperrors.Validation("Invalid music ID format")
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, apperrors.Upstream("delete music", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoMusicRepository) Ping(ctx context.Context) error {
	if err := r.coll.Database().Client().Ping(ctx, nil); err != nil {
		return apperrors.Upstream("ping mongodb", err)
	}
	return nil
}
