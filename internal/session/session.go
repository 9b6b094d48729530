package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	xerrors "CircleLayer-Assistant/internal/errors"
)

// Role 标识消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage 是会话中的一条消息，创建后不再修改。
type ChatMessage struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Conversation 独占保存一个会话的全部消息，只追加不删除。
type Conversation struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	mu       sync.RWMutex
	messages []ChatMessage
	nextID   int64
}

func newConversation(id string, now func() time.Time) *Conversation {
	return &Conversation{id: id, createdAt: now(), now: now}
}

// ID 返回会话标识。
func (c *Conversation) ID() string { return c.id }

// CreatedAt 返回会话创建时间。
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// AppendUser 记录一条用户消息。
func (c *Conversation) AppendUser(text string) ChatMessage {
	return c.append(RoleUser, text, "", nil)
}

// AppendAssistant 记录一条助手回复及其类型和附带数据。
func (c *Conversation) AppendAssistant(text, kind string, data any) ChatMessage {
	return c.append(RoleAssistant, text, kind, data)
}

func (c *Conversation) append(role Role, text, kind string, data any) ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	msg := ChatMessage{
		ID:        c.nextID,
		Role:      role,
		Text:      text,
		Timestamp: c.now(),
		Kind:      kind,
		Data:      data,
	}
	c.messages = append(c.messages, msg)
	return msg
}

// Messages 返回消息列表的快照。
func (c *Conversation) Messages() []ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len 返回消息数量。
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Greeting 描述新会话自动写入的欢迎消息。
type Greeting struct {
	Text string
	Kind string
}

// Manager 在内存中维护会话，进程退出后即丢失。
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	greeting      *Greeting
	now           func() time.Time
	newID         func() string
}

// Option 定义 Manager 的可选配置。
type Option func(*Manager)

// WithGreeting 设置新会话的欢迎消息。
func WithGreeting(text, kind string) Option {
	return func(m *Manager) {
		if text == "" {
			m.greeting = nil
			return
		}
		m.greeting = &Greeting{Text: text, Kind: kind}
	}
}

// WithClock 替换时间来源，便于测试。
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager 创建会话管理器。
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		conversations: make(map[string]*Conversation),
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Create 新建会话，并写入欢迎消息（如已配置）。
func (m *Manager) Create() *Conversation {
	conv := newConversation(m.newID(), m.now)
	if m.greeting != nil {
		conv.AppendAssistant(m.greeting.Text, m.greeting.Kind, nil)
	}
	m.mu.Lock()
	m.conversations[conv.id] = conv
	m.mu.Unlock()
	return conv
}

// Get 根据标识查找会话。
func (m *Manager) Get(id string) (*Conversation, error) {
	m.mu.RLock()
	conv, ok := m.conversations[id]
	m.mu.RUnlock()
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "会话不存在", xerrors.WithMetadata("session_id", id))
	}
	return conv, nil
}

// GetOrCreate 在标识为空或不存在时创建新会话。
func (m *Manager) GetOrCreate(id string) *Conversation {
	if id != "" {
		if conv, err := m.Get(id); err == nil {
			return conv
		}
	}
	return m.Create()
}

// Count 返回当前会话数量。
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}
