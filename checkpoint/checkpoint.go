// Package checkpoint 暂停扫描的持久化, 使扫描可以在另一个进程中继续
package checkpoint

import (
	"context"
	"errors"
	"time"

	"spice/ckt"
	"spice/output"
	"spice/sweep"
)

// ErrNotFound 没有对应的断点
var ErrNotFound = errors.New("checkpoint not found")

// State 暂停时保存的全部状态
type State struct {
	SessionID string          `yaml:"session_id"`
	Circuit   string          `yaml:"circuit"`
	Netlist   string          `yaml:"netlist,omitempty"` // 网表路径, 恢复时重新读入
	Job       *ckt.Job        `yaml:"job"`
	Freq      *sweep.FreqGrid `yaml:"freq,omitempty"`
	Warm      bool            `yaml:"warm,omitempty"`
	Accepted  []float64       `yaml:"accepted,omitempty"` // 热启动的上一个收敛点
	Names     []string        `yaml:"names"`
	Dims      []int           `yaml:"dims,omitempty"`
	Records   []output.Record `yaml:"records"`
	SavedAt   time.Time       `yaml:"saved_at"`
}

// Store 断点存储
type Store interface {
	Save(ctx context.Context, st *State) error
	Load(ctx context.Context, id string) (*State, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}
