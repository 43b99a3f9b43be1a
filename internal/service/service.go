package service

import (
	"sync"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合。引擎按单写者模型串行执行：
// 所有变更操作共享同一把互斥锁，每个操作完整执行后下一个才开始。
type Services struct {
	Part     *PartService
	Registry *RegistryService

	mu sync.Mutex
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, publisher events.Publisher, logger *zap.Logger) *Services {
	s := &Services{}
	s.Registry = NewRegistryService(db, publisher, logger, &s.mu)
	s.Part = NewPartService(db, publisher, logger, &s.mu)
	return s
}
