package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const collectionUsers = "users"

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	col *mongo.Collection
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	FirstName    string             `bson:"first_name"`
	LastName     string             `bson:"last_name"`
	IsStaff      bool               `bson:"is_staff"`
	PasswordHash string             `bson:"password_hash"`
	LastLogin    *time.Time         `bson:"last_login,omitempty"`
	DateJoined   time.Time          `bson:"date_joined"`
}

func toMongoUser(u *domain.User) mongoUser {
	doc := mongoUser{
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsStaff:      u.IsStaff,
		PasswordHash: u.PasswordHash,
		DateJoined:   u.DateJoined.UTC(),
	}
	if u.LastLogin != nil {
		ts := u.LastLogin.UTC()
		doc.LastLogin = &ts
	}
	return doc
}

func (m mongoUser) toDomain() *domain.User {
	u := &domain.User{
		ID:           m.ID.Hex(),
		Username:     m.Username,
		Email:        m.Email,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		IsStaff:      m.IsStaff,
		PasswordHash: m.PasswordHash,
		DateJoined:   m.DateJoined.UTC(),
	}
	if m.LastLogin != nil {
		ts := m.LastLogin.UTC()
		u.LastLogin = &ts
	}
	return u
}

// unusableCredential matches documents whose password_hash is empty or absent.
var unusableCredential = bson.M{"$in": bson.A{"", nil}}

// Create inserts a new user. A taken username yields domain.ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoUser(user)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByEmail returns the earliest-joined account carrying email. Email is
// not unique, so the sort keeps resolution deterministic.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, domain.ErrUserNotFound
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "date_joined", Value: 1}, {Key: "_id", Value: 1}})
	return r.findOne(ctx, bson.M{"email": email}, opts)
}

// FindOrCreateByUsername upserts defaults keyed by username. Existing
// documents are left untouched. Two upserts racing on the unique index can
// surface a duplicate key error, reported as domain.ErrUserExists.
func (r *UserRepository) FindOrCreateByUsername(ctx context.Context, defaults *domain.User) (*domain.User, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoUser(defaults)
	res, err := r.col.UpdateOne(ctx,
		bson.M{"username": defaults.Username},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, false, domain.ErrUserExists
		}
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}

	user, err := r.FindByUsername(ctx, defaults.Username)
	if err != nil {
		return nil, false, err
	}
	return user, res.UpsertedCount > 0, nil
}

// SetCredentialIfUnusable stores hash only while the user still has no
// credential. The filter makes the check and the write a single operation,
// so of several concurrent callers exactly one reports true.
func (r *UserRepository) SetCredentialIfUnusable(ctx context.Context, id, hash string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "password_hash": unusableCredential},
		bson.M{"$set": bson.M{"password_hash": hash}},
	)
	if err != nil {
		return false, fmt.Errorf("set credential: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"last_login": at.UTC()}})
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Save writes the profile fields of user. The credential is never written
// here and is_staff is only ever set, never cleared, so a concurrent
// bootstrap or staff grant cannot be lost.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	set := bson.M{
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	}
	if user.IsStaff {
		set["is_staff"] = true
	}
	if user.LastLogin != nil {
		set["last_login"] = user.LastLogin.UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns all users, most recent login first, then newest accounts.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "last_login", Value: -1}, {Key: "date_joined", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}

// EnsureIndexes creates the unique username index that find-or-create and
// signup rely on, plus a lookup index on email.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "date_joined", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoUser
	if err := r.col.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}
