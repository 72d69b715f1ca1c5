package idgen

import (
	"github.com/google/uuid"
)

// UUIDGenerator 基于 UUID v7 的 ID 生成器
// 随机位足够多，冲突概率可忽略；时间有序让 ID 天然按创建顺序排列
type UUIDGenerator struct {
	prefix string
}

// NewUUIDGenerator 创建 UUID 生成器，prefix 标记 ID 来源，如 "sess_"
func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

// Generate 生成唯一 ID，v7 失败时退回 v4，从不返回错误
func (g *UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return g.prefix + id.String(), nil
}

var _ IDGenerator[string] = (*UUIDGenerator)(nil)
