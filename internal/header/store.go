// Package header 提供 HTTP 头部存储：基于固定桶数哈希表（链式冲突）的
// 大小写不敏感多值映射。
package header

// TableSize 哈希表桶数（固定）
const TableSize = 17

// node 链表节点
type node struct {
	key   string // 折叠为小写后的键，用于哈希与比较
	name  string // 插入时的原始名称，仅用于序列化
	value string
	next  *node
}

// Node 是一次查找命中的只读视图
type Node struct {
	Name  string
	Value string
}

// Store 头部存储。零值不可用，请使用 New。
type Store struct {
	buckets []*node
	size    int
}

// New 创建空的头部存储
func New() *Store {
	return &Store{buckets: make([]*node, TableSize)}
}

// Insert 插入一个头部；同名头部不会合并，新节点被放到桶链表头部。
func (s *Store) Insert(name, value string) {
	key := Fold(name)
	i := bucket(key)
	s.buckets[i] = &node{key: key, name: name, value: value, next: s.buckets[i]}
	s.size++
}

// Lookup 按名称查找，返回桶链表中第一个匹配（即最近插入）的值。
func (s *Store) Lookup(name string) (string, bool) {
	n := s.lookup(name)
	if n == nil {
		return "", false
	}
	return n.value, true
}

// Get 返回名称对应的值，不存在时返回空串。
func (s *Store) Get(name string) string {
	v, _ := s.Lookup(name)
	return v
}

// Node 返回命中节点的视图
func (s *Store) Node(name string) (Node, bool) {
	n := s.lookup(name)
	if n == nil {
		return Node{}, false
	}
	return Node{Name: n.name, Value: n.value}, true
}

func (s *Store) lookup(name string) *node {
	if s == nil || s.size == 0 {
		return nil
	}
	key := Fold(name)
	for n := s.buckets[bucket(key)]; n != nil; n = n.next {
		if n.key == key {
			return n
		}
	}
	return nil
}

// Delete 删除所有同名节点，返回删除数量
func (s *Store) Delete(name string) int {
	if s == nil || s.size == 0 {
		return 0
	}
	key := Fold(name)
	i := bucket(key)
	removed := 0
	for p := &s.buckets[i]; *p != nil; {
		if (*p).key == key {
			*p = (*p).next
			removed++
			continue
		}
		p = &(*p).next
	}
	s.size -= removed
	return removed
}

// Each 按桶顺序遍历所有节点；fn 返回 false 时停止。
func (s *Store) Each(fn func(name, value string) bool) {
	if s == nil {
		return
	}
	for _, head := range s.buckets {
		for n := head; n != nil; n = n.next {
			if !fn(n.name, n.value) {
				return
			}
		}
	}
}

// Len 返回节点总数（含同名节点）
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return s.size
}

// Destroy 释放全部节点。release 可为 nil，否则对每个节点调用一次。
// 调用后 Store 为空，可以继续使用。
func (s *Store) Destroy(release func(name, value string)) {
	if s == nil {
		return
	}
	for i, head := range s.buckets {
		for n := head; n != nil; {
			next := n.next
			if release != nil {
				release(n.name, n.value)
			}
			n.next = nil
			n = next
		}
		s.buckets[i] = nil
	}
	s.size = 0
}

// Fold 将 ASCII 大写字母转换为小写；已是小写时不分配。
func Fold(name string) string {
	for i := 0; i < len(name); i++ {
		if c := name[i]; c >= 'A' && c <= 'Z' {
			b := []byte(name)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return name
}

// Hash djb2: 5381 起始，hash*33+c，无符号回绕。
func Hash(key string) uint64 {
	h := uint64(5381)
	for i := 0; i < len(key); i++ {
		h = h<<5 + h + uint64(key[i])
	}
	return h
}

func bucket(key string) int {
	return int(Hash(key) % TableSize)
}
