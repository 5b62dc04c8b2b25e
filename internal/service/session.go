package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/DevPlane/internal/adapter/memory"
	"github.com/Strob0t/DevPlane/internal/domain"
	"github.com/Strob0t/DevPlane/internal/domain/session"
)

// SessionService owns session records and their message transcripts. It
// also implements the executor's MessageStore so agent runs can read their
// input message and record their reply.
type SessionService struct {
	projects *ProjectService
	sessions *memory.Collection[session.Session]
	messages *memory.Collection[session.Message]
}

func NewSessionService(projects *ProjectService) *SessionService {
	return &SessionService{
		projects: projects,
		sessions: memory.NewCollection[session.Session](),
		messages: memory.NewCollection[session.Message](),
	}
}

func (s *SessionService) Create(ctx context.Context, projectID string, req *session.CreateRequest) (*session.Session, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := session.Session{
		ID:        "sess_" + uuid.NewString(),
		ProjectID: projectID,
		Title:     req.Title,
		ModelID:   req.ModelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Insert(sess.ID, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionService) Get(_ context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

func (s *SessionService) List(_ context.Context, projectID string) []session.Session {
	return s.sessions.List(func(sess *session.Session) bool {
		return projectID == "" || sess.ProjectID == projectID
	})
}

func (s *SessionService) Update(_ context.Context, id string, req *session.UpdateRequest) (*session.Session, error) {
	err := s.sessions.Update(id, func(sess *session.Session) error {
		if req.Title != nil {
			sess.Title = *req.Title
		}
		if req.ModelID != nil {
			sess.ModelID = *req.ModelID
		}
		sess.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(id)
}

// Delete removes the session and its transcript.
func (s *SessionService) Delete(_ context.Context, id string) error {
	if err := s.sessions.Delete(id); err != nil {
		return err
	}
	for _, m := range s.messages.List(func(m *session.Message) bool { return m.SessionID == id }) {
		_ = s.messages.Delete(m.ID)
	}
	return nil
}

// AppendMessage adds one turn to the session transcript.
func (s *SessionService) AppendMessage(_ context.Context, sessionID string, req *session.CreateMessageRequest) (*session.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	m := session.Message{
		ID:        "msg_" + uuid.NewString(),
		SessionID: sess.ID,
		Role:      req.Role,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Insert(m.ID, &m); err != nil {
		return nil, err
	}
	_ = s.sessions.Update(sessionID, func(sess *session.Session) error {
		sess.UpdatedAt = m.CreatedAt
		return nil
	})
	return &m, nil
}

// ListMessages returns the transcript in append order.
func (s *SessionService) ListMessages(_ context.Context, sessionID string) ([]session.Message, error) {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	return s.messages.List(func(m *session.Message) bool { return m.SessionID == sessionID }), nil
}

// MessageText resolves a message's content to plain text. Content is
// either a JSON string or an object with a text field.
func (s *SessionService) MessageText(_ context.Context, sessionID, messageID string) (string, error) {
	m, err := s.messages.Get(messageID)
	if err != nil {
		return "", err
	}
	if m.SessionID != sessionID {
		return "", domain.NotFoundf("message %s not found in session %s", messageID, sessionID)
	}

	var text string
	if err := json.Unmarshal(m.Content, &text); err == nil {
		return text, nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Content, &obj); err == nil && obj.Text != "" {
		return obj.Text, nil
	}
	return string(m.Content), nil
}

// AppendAssistant records an assistant turn and returns its message id.
func (s *SessionService) AppendAssistant(ctx context.Context, sessionID, text string) (string, error) {
	content, err := json.Marshal(text)
	if err != nil {
		return "", err
	}
	m, err := s.AppendMessage(ctx, sessionID, &session.CreateMessageRequest{
		Role:    "assistant",
		Content: content,
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}
