package session

// Subscribe 订阅会话的转写处理结果。返回的取消函数必须调用；
// 会话停止时 channel 被关闭
func (m *Manager) Subscribe(id string) (<-chan Outcome, func()) {
	ch := make(chan Outcome, 16)

	m.subMu.Lock()
	if m.subscribers[id] == nil {
		m.subscribers[id] = make(map[chan Outcome]struct{})
	}
	m.subscribers[id][ch] = struct{}{}
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if subs, ok := m.subscribers[id]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(m.subscribers, id)
			}
		}
	}
	return ch, cancel
}

// publish 非阻塞投递，慢消费者丢弃
func (m *Manager) publish(id string, out Outcome) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for ch := range m.subscribers[id] {
		select {
		case ch <- out:
		default:
			m.logger.Warn("[SessionManager] subscriber too slow, outcome dropped", "session_id", id)
		}
	}
}

func (m *Manager) closeSubscribers(id string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subscribers[id] {
		close(ch)
	}
	delete(m.subscribers, id)
}
