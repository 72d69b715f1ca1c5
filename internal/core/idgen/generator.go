package idgen

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator 泛型 ID 生成器接口
// 本包的生成器都是无限供给，不回收已发出的 ID
type IDGenerator[T any] interface {
	Generate() (T, error)
}

// SequenceGenerator 单调递增序号生成器
// 生成形如 <prefix>1、<prefix>2 的确定性 ID，注册表测试依赖其可预测性
type SequenceGenerator struct {
	prefix string
	seq    atomic.Int64
}

// NewSequenceGenerator 创建序号生成器
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate 生成下一个 ID，从不失败
func (g *SequenceGenerator) Generate() (string, error) {
	return fmt.Sprintf("%s%d", g.prefix, g.seq.Add(1)), nil
}

var _ IDGenerator[string] = (*SequenceGenerator)(nil)
