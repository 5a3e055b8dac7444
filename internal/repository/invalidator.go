package repository

import "sync"

// TopicStore 全局失效主题：任何写事务提交后都会发布
const TopicStore = "store"

// TopicStatus 单条 status 的失效主题
func TopicStatus(statusKey string) string { return "status:" + statusKey }

// TopicFeed 单个 feed 的失效主题
func TopicFeed(pagingKey string) string { return "feed:" + pagingKey }

// Invalidator 失效信号总线：写事务提交后按主题通知订阅者，订阅端重查发射。
// 信号只做合并（容量 1 的通道），不携带数据。
type Invalidator struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
}

func NewInvalidator() *Invalidator {
	return &Invalidator{subs: make(map[string]map[int]chan struct{})}
}

// Subscribe 订阅一组主题，返回信号通道和取消函数
func (v *Invalidator) Subscribe(topics ...string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	v.mu.Lock()
	id := v.next
	v.next++
	for _, t := range topics {
		if v.subs[t] == nil {
			v.subs[t] = make(map[int]chan struct{})
		}
		v.subs[t][id] = ch
	}
	v.mu.Unlock()

	cancel := func() {
		v.mu.Lock()
		for _, t := range topics {
			delete(v.subs[t], id)
			if len(v.subs[t]) == 0 {
				delete(v.subs, t)
			}
		}
		v.mu.Unlock()
	}
	return ch, cancel
}

// Publish 通知主题下的全部订阅者；通道已满说明有未消费的信号，直接合并
func (v *Invalidator) Publish(topics ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	seen := make(map[int]bool)
	for _, t := range topics {
		for id, ch := range v.subs[t] {
			if seen[id] {
				continue
			}
			seen[id] = true
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}
