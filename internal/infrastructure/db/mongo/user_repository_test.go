package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// Malformed IDs never reach the driver, so a repository without a collection
// is enough here.
func TestUserRepository_MalformedIDIsNotFound(t *testing.T) {
	repo := &UserRepository{}
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "not-an-object-id"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("FindByID: expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.SetCredentialIfUnusable(ctx, "xyz", "hash"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("SetCredentialIfUnusable: expected ErrUserNotFound, got %v", err)
	}
	if err := repo.TouchLastLogin(ctx, "", time.Now()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("TouchLastLogin: expected ErrUserNotFound, got %v", err)
	}
	if err := repo.Save(ctx, &domain.User{ID: "123"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Save: expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByEmail(ctx, ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("FindByEmail: expected ErrUserNotFound for empty email, got %v", err)
	}
}

func TestMongoUser_NormalisesTimesToUTC(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	joined := time.Date(2024, 1, 2, 3, 4, 5, 0, loc)
	last := joined.Add(time.Hour)

	doc := toMongoUser(&domain.User{Username: "alice", DateJoined: joined, LastLogin: &last})
	if doc.DateJoined.Location() != time.UTC || doc.LastLogin.Location() != time.UTC {
		t.Fatalf("expected UTC times in document, got %v / %v", doc.DateJoined, doc.LastLogin)
	}

	u := doc.toDomain()
	if !u.DateJoined.Equal(joined) || !u.LastLogin.Equal(last) {
		t.Fatalf("times changed across conversion: %v / %v", u.DateJoined, u.LastLogin)
	}

	noLogin := toMongoUser(&domain.User{Username: "bob"})
	if noLogin.LastLogin != nil || noLogin.toDomain().LastLogin != nil {
		t.Fatalf("expected nil last_login to stay nil")
	}
}

// The tests below run the repository against the driver's mock deployment
// and assert on the commands it sends.

func newMockT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func writeReply(n, modified int32, extra ...bson.E) bson.D {
	return mtest.CreateSuccessResponse(append([]bson.E{{Key: "n", Value: n}, {Key: "nModified", Value: modified}}, extra...)...)
}

func cursorReply(mt *mtest.T, docs ...bson.D) bson.D {
	ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docs...)
}

// sentCommand pops the next started command and checks its name.
func sentCommand(mt *mtest.T, name string) bson.Raw {
	mt.Helper()
	evt := mt.GetStartedEvent()
	if evt == nil {
		mt.Fatalf("expected a %s command, none was sent", name)
	}
	if evt.CommandName != name {
		mt.Fatalf("expected %s command, got %s", name, evt.CommandName)
	}
	return evt.Command
}

// sentUpdate returns the single update statement of the next update command.
func sentUpdate(mt *mtest.T) bson.Raw {
	mt.Helper()
	return sentCommand(mt, "update").Lookup("updates", "0").Document()
}

func hasKey(doc bson.Raw, key ...string) bool {
	_, err := doc.LookupErr(key...)
	return err == nil
}

func TestUserRepository_SetCredentialIfUnusable(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()
	oid := primitive.NewObjectID()

	mt.Run("applies to an account without credential", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(writeReply(1, 1))

		applied, err := repo.SetCredentialIfUnusable(ctx, oid.Hex(), "bcrypt-hash")
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if !applied {
			mt.Fatalf("expected the credential to be applied")
		}

		stmt := sentUpdate(mt)
		q := stmt.Lookup("q").Document()
		if got := q.Lookup("_id").ObjectID(); got != oid {
			mt.Fatalf("filter _id = %v, want %v", got, oid)
		}
		values, err := q.Lookup("password_hash", "$in").Array().Values()
		if err != nil || len(values) != 2 {
			mt.Fatalf("expected $in with two values, got %v (%v)", values, err)
		}
		if values[0].StringValue() != "" || values[1].Type != bsontype.Null {
			mt.Fatalf("filter must match empty or missing credential, got %v", values)
		}
		if got := stmt.Lookup("u", "$set", "password_hash").StringValue(); got != "bcrypt-hash" {
			mt.Fatalf("$set.password_hash = %q", got)
		}
		if hasKey(stmt, "upsert") && stmt.Lookup("upsert").Boolean() {
			mt.Fatalf("credential bootstrap must never upsert")
		}
	})

	mt.Run("reports false when another login won", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(writeReply(0, 0))

		applied, err := repo.SetCredentialIfUnusable(ctx, oid.Hex(), "bcrypt-hash")
		if err != nil {
			mt.Fatalf("losing the race is not an error, got %v", err)
		}
		if applied {
			mt.Fatalf("expected applied=false when nothing was modified")
		}
	})
}

func TestUserRepository_FindOrCreateByUsername(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()
	oid := primitive.NewObjectID()
	joined := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mt.Run("creates a missing account", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(
			writeReply(1, 0, bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: oid}}}}),
			cursorReply(mt, bson.D{
				{Key: "_id", Value: oid},
				{Key: "username", Value: "new@x.com"},
				{Key: "email", Value: "new@x.com"},
				{Key: "is_staff", Value: false},
				{Key: "password_hash", Value: ""},
				{Key: "date_joined", Value: joined},
			}),
		)

		user, created, err := repo.FindOrCreateByUsername(ctx, &domain.User{Username: "new@x.com", Email: "new@x.com", DateJoined: joined})
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if !created {
			mt.Fatalf("expected created=true when the server reports an upsert")
		}
		if user.ID != oid.Hex() || user.Username != "new@x.com" || user.HasUsableCredential() {
			mt.Fatalf("unexpected user: %+v", user)
		}

		stmt := sentUpdate(mt)
		if got := stmt.Lookup("q", "username").StringValue(); got != "new@x.com" {
			mt.Fatalf("filter username = %q", got)
		}
		if !stmt.Lookup("upsert").Boolean() {
			mt.Fatalf("expected an upsert")
		}
		if got := stmt.Lookup("u", "$setOnInsert", "username").StringValue(); got != "new@x.com" {
			mt.Fatalf("$setOnInsert.username = %q", got)
		}
		if hasKey(stmt, "u", "$set") {
			mt.Fatalf("an existing account must not be modified")
		}

		find := sentCommand(mt, "find")
		if got := find.Lookup("filter", "username").StringValue(); got != "new@x.com" {
			mt.Fatalf("re-read filter username = %q", got)
		}
	})

	mt.Run("returns an existing account untouched", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(
			writeReply(1, 0),
			cursorReply(mt, bson.D{
				{Key: "_id", Value: oid},
				{Key: "username", Value: "boss@x.com"},
				{Key: "email", Value: "boss@x.com"},
				{Key: "is_staff", Value: true},
				{Key: "password_hash", Value: "stored-hash"},
				{Key: "date_joined", Value: joined},
			}),
		)

		user, created, err := repo.FindOrCreateByUsername(ctx, &domain.User{Username: "boss@x.com", DateJoined: time.Now()})
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if created {
			mt.Fatalf("expected created=false without an upserted id")
		}
		if !user.IsStaff || user.PasswordHash != "stored-hash" || !user.DateJoined.Equal(joined) {
			mt.Fatalf("stored fields must win over defaults, got %+v", user)
		}
	})

	mt.Run("duplicate key maps to ErrUserExists", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))

		_, _, err := repo.FindOrCreateByUsername(ctx, &domain.User{Username: "race@x.com"})
		if !errors.Is(err, domain.ErrUserExists) {
			mt.Fatalf("expected ErrUserExists, got %v", err)
		}
	})
}

func TestUserRepository_Save(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()
	oid := primitive.NewObjectID()
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("writes profile fields only", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(writeReply(1, 1))

		err := repo.Save(ctx, &domain.User{
			ID:           oid.Hex(),
			Username:     "ada@x.com",
			Email:        "ada@x.com",
			FirstName:    "Ada",
			LastName:     "Lovelace",
			PasswordHash: "stale-snapshot",
			LastLogin:    &last,
		})
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}

		stmt := sentUpdate(mt)
		if got := stmt.Lookup("q", "_id").ObjectID(); got != oid {
			mt.Fatalf("filter _id = %v, want %v", got, oid)
		}
		set := stmt.Lookup("u", "$set").Document()
		if set.Lookup("email").StringValue() != "ada@x.com" || set.Lookup("first_name").StringValue() != "Ada" || set.Lookup("last_name").StringValue() != "Lovelace" {
			mt.Fatalf("unexpected $set: %v", set)
		}
		if !set.Lookup("last_login").Time().Equal(last) {
			mt.Fatalf("expected last_login in $set, got %v", set)
		}
		for _, key := range []string{"password_hash", "is_staff", "username", "date_joined"} {
			if hasKey(set, key) {
				mt.Fatalf("$set must not carry %s: %v", key, set)
			}
		}
		if hasKey(stmt, "u", "$unset") {
			mt.Fatalf("save must never unset fields")
		}
	})

	mt.Run("sets staff but never clears it", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(writeReply(1, 1))

		if err := repo.Save(ctx, &domain.User{ID: oid.Hex(), IsStaff: true}); err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if !sentUpdate(mt).Lookup("u", "$set", "is_staff").Boolean() {
			mt.Fatalf("expected is_staff=true in $set")
		}
	})

	mt.Run("unknown id", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(writeReply(0, 0))

		if err := repo.Save(ctx, &domain.User{ID: oid.Hex()}); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestUserRepository_TouchLastLogin(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()
	oid := primitive.NewObjectID()
	at := time.Date(2024, 5, 1, 6, 0, 0, 0, time.FixedZone("CST", -6*3600))

	mt.Run("writes UTC timestamp", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(writeReply(1, 1))

		if err := repo.TouchLastLogin(ctx, oid.Hex(), at); err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		set := sentUpdate(mt).Lookup("u", "$set").Document()
		if !set.Lookup("last_login").Time().Equal(at) {
			mt.Fatalf("unexpected last_login: %v", set)
		}
		if hasKey(set, "password_hash") {
			mt.Fatalf("touch must only write last_login")
		}
	})

	mt.Run("unknown id", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(writeReply(0, 0))

		if err := repo.TouchLastLogin(ctx, oid.Hex(), at); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestUserRepository_FindByEmail(t *testing.T) {
	mt := newMockT(t)
	ctx := context.Background()

	mt.Run("earliest joined wins", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		oid := primitive.NewObjectID()
		mt.AddMockResponses(cursorReply(mt, bson.D{
			{Key: "_id", Value: oid},
			{Key: "username", Value: "alice"},
			{Key: "email", Value: "alice@example.com"},
			{Key: "date_joined", Value: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		}))

		user, err := repo.FindByEmail(ctx, "alice@example.com")
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if user.ID != oid.Hex() || user.Username != "alice" {
			mt.Fatalf("unexpected user: %+v", user)
		}

		find := sentCommand(mt, "find")
		if got := find.Lookup("filter", "email").StringValue(); got != "alice@example.com" {
			mt.Fatalf("filter email = %q", got)
		}
		keys, err := find.Lookup("sort").Document().Elements()
		if err != nil || len(keys) != 2 || keys[0].Key() != "date_joined" || keys[1].Key() != "_id" {
			mt.Fatalf("expected sort on date_joined then _id, got %v", find.Lookup("sort"))
		}
	})

	mt.Run("no match", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(cursorReply(mt))

		if _, err := repo.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
			mt.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	mt := newMockT(t)

	mt.Run("taken username", func(mt *mtest.T) {
		repo := &UserRepository{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))

		_, err := repo.Create(context.Background(), &domain.User{Username: "alice"})
		if !errors.Is(err, domain.ErrUserExists) {
			mt.Fatalf("expected ErrUserExists, got %v", err)
		}
	})
}
