package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jlynch25/kaizen_api/internal/storage"
	model "github.com/jlynch25/kaizen_api/models"
)

func (s *Storage) SaveUser(ctx context.Context, user model.User) (model.User, error) {
	const op = "storage.mongo.SaveUser"

	user.ID = primitive.NilObjectID
	result, err := s.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (model.User, error) {
	const op = "storage.mongo.UserByEmail"
	return s.findUser(ctx, op, bson.M{"email": email})
}

func (s *Storage) User(ctx context.Context, id string) (model.User, error) {
	const op = "storage.mongo.User"

	oid, err := objectID(id)
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.findUser(ctx, op, bson.M{"_id": oid})
}

func (s *Storage) findUser(ctx context.Context, op string, filter bson.M) (model.User, error) {
	var user model.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if isNotFound(err) {
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) Users(ctx context.Context) ([]model.User, error) {
	const op = "storage.mongo.Users"

	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": -1}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	users := []model.User{}
	for cursor.Next(ctx) {
		var user model.User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		users = append(users, user)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (s *Storage) UpdateUser(ctx context.Context, id string, patch storage.UserPatch) (model.User, error) {
	const op = "storage.mongo.UpdateUser"

	oid, err := objectID(id)
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	update := bson.M{}
	if patch.Username != nil {
		update["username"] = *patch.Username
	}
	if patch.Email != nil {
		update["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		update["password"] = *patch.PasswordHash
	}
	if patch.ImageURL != nil {
		update["imageUrl"] = *patch.ImageURL
	}

	unset := bson.M{}
	if patch.WalletAddress != nil {
		if *patch.WalletAddress == "" {
			unset["walletAddress"] = ""
		} else {
			update["walletAddress"] = *patch.WalletAddress
		}
	}
	if len(update) == 0 && len(unset) == 0 {
		return s.findUser(ctx, op, bson.M{"_id": oid})
	}

	change := bson.M{}
	if len(update) > 0 {
		change["$set"] = update
	}
	if len(unset) > 0 {
		change["$unset"] = unset
	}

	var user model.User
	err = s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, change,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
	if err != nil {
		switch {
		case isNotFound(err):
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		case mongo.IsDuplicateKeyError(err):
			return model.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.mongo.DeleteUser"

	oid, err := objectID(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}
