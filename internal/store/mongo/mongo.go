package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skillbridge/messaging-server/internal/store"
)

// MongoStore implements store.Store on a MongoDB database, for deployments
// already running the marketplace's Mongo cluster.
type MongoStore struct {
	client   *mongo.Client
	messages *mongo.Collection
	counters *mongo.Collection
}

type messageDoc struct {
	ID          int64     `bson:"_id"`
	SenderID    string    `bson:"senderId"`
	ReceiverID  string    `bson:"receiverId"`
	Kind        string    `bson:"kind"`
	Content     string    `bson:"content"`
	Attachments []string  `bson:"attachments"`
	ProjectID   string    `bson:"projectId,omitempty"`
	IsRead      bool      `bson:"isRead"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// New connects to MongoDB and prepares the message collections.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		messages: db.Collection("messages"),
		counters: db.Collection("counters"),
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "isRead", Value: 1}}},
	}
	if _, err := s.messages.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return s, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// nextID increments the message counter, keeping ids monotonic like the
// sqlite backend's autoincrement.
func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "messages"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	return doc.Seq, nil
}

// SaveMessage persists a message, assigning its canonical ID and CreatedAt.
func (s *MongoStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}

	createdAt := time.Now().UTC()
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	doc := messageDoc{
		ID:          id,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		Kind:        msg.Kind,
		Content:     msg.Content,
		Attachments: attachments,
		ProjectID:   msg.ProjectID,
		IsRead:      false,
		CreatedAt:   createdAt,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt
	msg.IsRead = false
	return nil
}

// GetMessage retrieves a message by ID.
func (s *MongoStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	var doc messageDoc
	err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return docToMessage(&doc), nil
}

// MarkMessageRead flips isRead exactly once via a conditional update.
func (s *MongoStore) MarkMessageRead(ctx context.Context, id int64) (bool, error) {
	res, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": id, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	count, err := s.messages.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("check message exists: %w", err)
	}
	if count == 0 {
		return false, store.ErrNotFound
	}
	return false, nil
}

// ListMessages retrieves the thread between two users, oldest first.
func (s *MongoStore) ListMessages(ctx context.Context, userID, otherUserID string, f store.ListFilter) ([]*store.Message, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	filter := bson.M{
		"$or": bson.A{
			bson.M{"senderId": userID, "receiverId": otherUserID},
			bson.M{"senderId": otherUserID, "receiverId": userID},
		},
	}
	if f.ProjectID != "" {
		filter["projectId"] = f.ProjectID
	}
	if f.BeforeID > 0 {
		filter["_id"] = bson.M{"$lt": f.BeforeID}
	}

	cursor, err := s.messages.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*store.Message
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, docToMessage(&doc))
	}
	return out, cursor.Err()
}

// ListConversations derives one conversation per counterparty, most recent first.
func (s *MongoStore) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{bson.M{"senderId": userID}, bson.M{"receiverId": userID}},
		}}},
		{{Key: "$addFields", Value: bson.M{
			"counterparty": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$senderId", userID}}, "$receiverId", "$senderId",
			}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":  "$counterparty",
			"last": bson.M{"$last": "$$ROOT"},
			"unread": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiverId", userID}},
					bson.M{"$eq": bson.A{"$isRead", false}},
				}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last._id", Value: -1}}}},
	}

	cursor, err := s.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*store.Conversation
	for cursor.Next(ctx) {
		var row struct {
			ID     string     `bson:"_id"`
			Last   messageDoc `bson:"last"`
			Unread int        `bson:"unread"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		out = append(out, &store.Conversation{
			CounterpartyID: row.ID,
			LastMessage:    docToMessage(&row.Last),
			UnreadCount:    row.Unread,
		})
	}
	return out, cursor.Err()
}

func docToMessage(doc *messageDoc) *store.Message {
	return &store.Message{
		ID:          doc.ID,
		SenderID:    doc.SenderID,
		ReceiverID:  doc.ReceiverID,
		Kind:        doc.Kind,
		Content:     doc.Content,
		Attachments: doc.Attachments,
		ProjectID:   doc.ProjectID,
		IsRead:      doc.IsRead,
		CreatedAt:   doc.CreatedAt,
	}
}
