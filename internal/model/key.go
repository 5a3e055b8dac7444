package model

import (
	"fmt"
	"strings"
)

// Key 跨平台复合键（平台内 id + host），序列化成 "id@host" 存库
type Key struct {
	ID   string
	Host string
}

func NewKey(id, host string) Key { return Key{ID: id, Host: host} }

// ParseKey 解析 "id@host"；id 本身可能含 '@'（如 AT-URI），按最后一个分隔
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("invalid key: %q", s)
	}
	return Key{ID: s[:i], Host: s[i+1:]}, nil
}

func (k Key) String() string { return k.ID + "@" + k.Host }
