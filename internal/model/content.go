package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PlatformType 上游平台类型
type PlatformType string

const (
	PlatformMastodon PlatformType = "mastodon"
	PlatformMisskey  PlatformType = "misskey"
	PlatformBluesky  PlatformType = "bluesky"
	PlatformXQT      PlatformType = "xqt"
	PlatformNostr    PlatformType = "nostr"
	PlatformRSS      PlatformType = "rss"
)

// Payload 平台打标的 JSON 载荷（tagged union 存单列）
type Payload struct {
	Platform PlatformType    `json:"platform"`
	Raw      json.RawMessage `json:"raw"`
}

// NewPayload 把平台 DTO 编码成载荷
func NewPayload(platform PlatformType, v any) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("encode %s payload: %w", platform, err)
	}
	return Payload{Platform: platform, Raw: raw}, nil
}

// Decode 解码成期望平台的 DTO；平台不匹配时返回 false 且不写 out
func (p Payload) Decode(platform PlatformType, out any) (bool, error) {
	if p.Platform != platform {
		return false, nil
	}
	if err := json.Unmarshal(p.Raw, out); err != nil {
		return false, fmt.Errorf("decode %s payload: %w", platform, err)
	}
	return true, nil
}

func (p Payload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Payload) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = Payload{}
		return nil
	default:
		return fmt.Errorf("unsupported payload column type %T", value)
	}
}
