package model

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// BigInt 任意精度整数，数据库中以十进制字符串(numeric)存储。
// 金额一律使用最小代币单位，聚合后可能超过64位，禁止使用int64或浮点。
type BigInt struct {
	big.Int
}

// NewBigInt 从 *big.Int 创建
func NewBigInt(x *big.Int) BigInt {
	var b BigInt
	if x != nil {
		b.Int.Set(x)
	}
	return b
}

// NewBigIntFromString 从十进制字符串创建
func NewBigIntFromString(s string) (BigInt, error) {
	var b BigInt
	if _, ok := b.Int.SetString(s, 10); !ok {
		return BigInt{}, fmt.Errorf("invalid integer string: %q", s)
	}
	return b, nil
}

// Big 返回独立副本，调用方可安全修改
func (b *BigInt) Big() *big.Int {
	return new(big.Int).Set(&b.Int)
}

// Value 实现 driver.Valuer
func (b BigInt) Value() (driver.Value, error) {
	return b.Int.String(), nil
}

// Scan 实现 sql.Scanner
func (b *BigInt) Scan(value interface{}) error {
	if value == nil {
		b.Int.SetInt64(0)
		return nil
	}
	switch v := value.(type) {
	case string:
		if _, ok := b.Int.SetString(v, 10); !ok {
			return fmt.Errorf("failed to scan BigInt from string %q", v)
		}
	case []byte:
		if _, ok := b.Int.SetString(string(v), 10); !ok {
			return fmt.Errorf("failed to scan BigInt from bytes %q", v)
		}
	case int64:
		b.Int.SetInt64(v)
	default:
		return fmt.Errorf("unsupported BigInt source type %T", value)
	}
	return nil
}

// GormDataType gorm 列类型
func (BigInt) GormDataType() string {
	return "numeric(78,0)"
}

// MarshalJSON 以十进制字符串输出
func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.Int.String() + `"`), nil
}

// UnmarshalJSON 接受字符串或裸数字
func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := b.Int.SetString(s, 10); !ok {
		return fmt.Errorf("invalid BigInt json value: %s", data)
	}
	return nil
}
