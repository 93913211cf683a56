// ABOUTME: MongoDB implementation of the Store interface using the official driver
// ABOUTME: Enforces email uniqueness with a unique index created at startup

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore implements the Store interface on top of a MongoDB database
type MongoStore struct {
	client    *mongo.Client
	users     *mongo.Collection
	materials *mongo.Collection
	projects  *mongo.Collection
	logger    *slog.Logger
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"hashed_password"`
	Username     string             `bson:"username,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
}

type materialDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Unit      string             `bson:"unit"`
	Coverage  float64            `bson:"coverage"`
	ImageData string             `bson:"imageUrl,omitempty"`
	ImageKey  string             `bson:"image_key,omitempty"`
	CreatedBy string             `bson:"created_by"`
	CreatedAt time.Time          `bson:"created_at"`
}

type projectDoc struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty"`
	UserID              string               `bson:"user_id"`
	Title               string               `bson:"title"`
	Date                time.Time            `bson:"date"`
	Dimensions          map[string]float64   `bson:"dimensions"`
	CalculatedMaterials []CalculatedMaterial `bson:"calculated_materials"`
	CreatedAt           time.Time            `bson:"created_at"`
}

// NewMongoStore connects to uri, verifies the connection and ensures indexes
// exist on the named database.
func NewMongoStore(ctx context.Context, uri, dbName string, timeout time.Duration) (*MongoStore, error) {
	logger := slog.Default().With("component", "store")

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: pinging mongodb: %v", ErrUnavailable, err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:    client,
		users:     db.Collection("users"),
		materials: db.Collection("materials"),
		projects:  db.Collection("projects"),
		logger:    logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	logger.Info("MongoDB store initialized", "database", dbName)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
	})
	if err != nil {
		return fmt.Errorf("users.email: %w", err)
	}

	_, err = s.projects.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("idx_projects_user"),
	})
	if err != nil {
		return fmt.Errorf("projects.user_id: %w", err)
	}
	return nil
}

// Ping checks that the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a user; the unique email index rejects duplicates.
func (s *MongoStore) CreateUser(ctx context.Context, user *User) error {
	doc := userDoc{
		Email:        NormalizeEmail(user.Email),
		PasswordHash: user.PasswordHash,
		Username:     user.Username,
		CreatedAt:    user.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if user.ID != "" {
		oid, err := primitive.ObjectIDFromHex(user.ID)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", user.ID, err)
		}
		doc.ID = oid
	}

	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return s.wrapError("inserting user", err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid.Hex()
	}
	user.Email = doc.Email
	user.CreatedAt = doc.CreatedAt
	s.logger.Info("created user", "id", user.ID)
	return nil
}

// GetUserByEmail retrieves a user by email
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.wrapError("finding user", err)
	}

	return &User{
		ID:           doc.ID.Hex(),
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Username:     doc.Username,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// DeleteUser removes a user by email
func (s *MongoStore) DeleteUser(ctx context.Context, email string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"email": NormalizeEmail(email)})
	if err != nil {
		return s.wrapError("deleting user", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMaterial inserts a catalog entry
func (s *MongoStore) CreateMaterial(ctx context.Context, m *Material) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	res, err := s.materials.InsertOne(ctx, materialDoc{
		Name:      m.Name,
		Unit:      m.Unit,
		Coverage:  m.Coverage,
		ImageData: m.ImageData,
		ImageKey:  m.ImageKey,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	})
	if err != nil {
		return s.wrapError("inserting material", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid.Hex()
	}
	return nil
}

// GetMaterial retrieves a catalog entry by ID. Malformed IDs are a miss.
func (s *MongoStore) GetMaterial(ctx context.Context, id string) (*Material, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc materialDoc
	err = s.materials.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.wrapError("finding material", err)
	}
	return doc.toMaterial(), nil
}

// ListMaterials returns the whole catalog, oldest first
func (s *MongoStore) ListMaterials(ctx context.Context) ([]*Material, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.materials.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, s.wrapError("listing materials", err)
	}
	defer cur.Close(ctx)

	materials := make([]*Material, 0)
	for cur.Next(ctx) {
		var doc materialDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding material: %w", err)
		}
		materials = append(materials, doc.toMaterial())
	}
	if err := cur.Err(); err != nil {
		return nil, s.wrapError("iterating materials", err)
	}
	return materials, nil
}

// DeleteMaterial removes a catalog entry. Malformed IDs are a miss.
func (s *MongoStore) DeleteMaterial(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.materials.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return s.wrapError("deleting material", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateProject saves a project calculation
func (s *MongoStore) CreateProject(ctx context.Context, p *Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Date.IsZero() {
		p.Date = p.CreatedAt
	}

	res, err := s.projects.InsertOne(ctx, projectDoc{
		UserID:              p.UserID,
		Title:               p.Title,
		Date:                p.Date,
		Dimensions:          p.Dimensions,
		CalculatedMaterials: p.CalculatedMaterials,
		CreatedAt:           p.CreatedAt,
	})
	if err != nil {
		return s.wrapError("inserting project", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid.Hex()
	}
	return nil
}

// ListProjectsByUser returns the projects saved by one user, oldest first
func (s *MongoStore) ListProjectsByUser(ctx context.Context, userID string) ([]*Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.projects.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, s.wrapError("listing projects", err)
	}
	defer cur.Close(ctx)

	projects := make([]*Project, 0)
	for cur.Next(ctx) {
		var doc projectDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding project: %w", err)
		}
		projects = append(projects, &Project{
			ID:                  doc.ID.Hex(),
			UserID:              doc.UserID,
			Title:               doc.Title,
			Date:                doc.Date,
			Dimensions:          doc.Dimensions,
			CalculatedMaterials: doc.CalculatedMaterials,
			CreatedAt:           doc.CreatedAt,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, s.wrapError("iterating projects", err)
	}
	return projects, nil
}

func (d *materialDoc) toMaterial() *Material {
	return &Material{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Unit:      d.Unit,
		Coverage:  d.Coverage,
		ImageData: d.ImageData,
		ImageKey:  d.ImageKey,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
	}
}

func (s *MongoStore) wrapError(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("database unavailable", "op", op, "error", err)
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
