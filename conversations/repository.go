package conversations

import (
	"context"
	"database/sql"
	"time"
)

type Conversation struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Message is one turn in a conversation. Messages are appended, never
// reordered or edited.
type Message struct {
	ID             int       `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, id string, userID int, title string) (*Conversation, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title) VALUES (?,?,?)`, id, userID, title)
	if err != nil {
		return nil, err
	}
	return &Conversation{ID: id, UserID: userID, Title: title, CreatedAt: time.Now()}, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM conversations WHERE id=? LIMIT 1`, id)
	var conv Conversation
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUser returns the user's conversations, newest first, each with its
// messages in chronological order.
func (r *Repository) ListByUser(ctx context.Context, userID int) ([]Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at FROM conversations WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []Conversation{}
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range convs {
		msgs, err := r.Messages(ctx, convs[i].ID)
		if err != nil {
			return nil, err
		}
		convs[i].Messages = msgs
	}
	return convs, nil
}

// Messages returns a conversation's messages ordered by creation.
func (r *Repository) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id=? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *Repository) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content) VALUES (?,?,?)`,
		conversationID, role, content)
	return err
}
