package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID 请求体中的实体 ID，兼容数字与字符串
type ID uint

// UnmarshalJSON 解析数字或数字字符串，空串视为缺失
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*id = 0
			return nil
		}
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	*id = ID(value)
	return nil
}

// Uint 转为 uint
func (id ID) Uint() uint {
	return uint(id)
}
