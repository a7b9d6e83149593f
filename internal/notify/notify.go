package notify

import "sync"

// Notifier 通知接口
type Notifier interface {
	Show(title, message string) error
}

// Message 一条通知
type Message struct {
	Title   string
	Message string
}

// Recorder 记录通知而不显示，适合测试和关闭通知的场景
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Show 记录通知
func (r *Recorder) Show(title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Title: title, Message: message})
	return nil
}

// Messages 已记录的通知
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
