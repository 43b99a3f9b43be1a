package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/events"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/model/entity"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegistryService 所有权登记服务：维护零件ID到持有账户的映射、
// 委托授权，以及带级联的整树转移。
type RegistryService struct {
	db        *gorm.DB
	publisher events.Publisher
	logger    *zap.Logger
	mu        *sync.Mutex
}

// NewRegistryService 创建所有权登记服务
func NewRegistryService(db *gorm.DB, publisher events.Publisher, logger *zap.Logger, mu *sync.Mutex) *RegistryService {
	return &RegistryService{db: db, publisher: publisher, logger: logger, mu: mu}
}

// CurrentOwner 返回零件的当前持有账户
func (s *RegistryService) CurrentOwner(ctx context.Context, partID uint64) (string, error) {
	owner, err := repository.NewOwnershipRepository(s.db).OwnerOf(ctx, partID)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", fmt.Errorf("%w: part %d", ErrNotFound, partID)
		}
		return "", err
	}
	return owner, nil
}

// IsAuthorized 判断 caller 是否可操作零件：
// 持有者本人、零件级受托账户或账户级操作员。
func (s *RegistryService) IsAuthorized(ctx context.Context, caller string, partID uint64) (bool, error) {
	owns := repository.NewOwnershipRepository(s.db)
	own, err := owns.FindByPartID(ctx, partID)
	if err != nil {
		if err == repository.ErrNotFound {
			return false, fmt.Errorf("%w: part %d", ErrNotFound, partID)
		}
		return false, err
	}
	return authorized(ctx, owns, own, caller)
}

// authorized 针对一条所有权记录检查 caller 的操作资格
func authorized(ctx context.Context, owns *repository.OwnershipRepository, own *entity.Ownership, caller string) (bool, error) {
	if caller == own.Owner {
		return true, nil
	}
	if own.Approved != "" && caller == own.Approved {
		return true, nil
	}
	return owns.HasOperator(ctx, own.Owner, caller)
}

// Approve 设置零件级受托账户。仅持有者或其操作员可调用；
// 传空账户即撤销现有委托。
func (s *RegistryService) Approve(ctx context.Context, caller string, partID uint64, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		owns := repository.NewOwnershipRepository(tx)
		own, err := owns.FindByPartID(ctx, partID)
		if err != nil {
			if err == repository.ErrNotFound {
				return fmt.Errorf("%w: part %d", ErrNotFound, partID)
			}
			return err
		}

		allowed := caller == own.Owner
		if !allowed {
			allowed, err = owns.HasOperator(ctx, own.Owner, caller)
			if err != nil {
				return err
			}
		}
		if !allowed {
			return fmt.Errorf("%w: approve part %d by %s", ErrUnauthorized, partID, caller)
		}

		own.Approved = account
		return owns.Update(ctx, own)
	})
}

// SetOperatorApproval 授予或撤销账户级操作员授权
func (s *RegistryService) SetOperatorApproval(ctx context.Context, owner, operator string, approved bool) error {
	if operator == "" || operator == owner {
		return fmt.Errorf("%w: invalid operator account", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owns := repository.NewOwnershipRepository(s.db)
	if approved {
		return owns.SetOperator(ctx, owner, operator)
	}
	return owns.RemoveOperator(ctx, owner, operator)
}

// Transfer 转移零件所有权。锁定件（子件）不能作为转移目标，
// 只有树根可以；自由件转移时级联到整棵子树，保证树内所有
// 零件在转移后仍属于同一账户。整个级联在一个事务内完成。
func (s *RegistryService) Transfer(ctx context.Context, caller string, partID uint64, to string) error {
	if to == "" {
		return fmt.Errorf("%w: empty recipient account", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var emitted []events.Event
	err := s.db.Transaction(func(tx *gorm.DB) error {
		parts := repository.NewPartRepository(tx)
		owns := repository.NewOwnershipRepository(tx)

		part, err := parts.FindByID(ctx, partID)
		if err != nil {
			if err == repository.ErrNotFound {
				return fmt.Errorf("%w: part %d", ErrNotFound, partID)
			}
			return err
		}

		own, err := owns.FindByPartID(ctx, partID)
		if err != nil {
			return err
		}

		ok, err := authorized(ctx, owns, own, caller)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: transfer part %d by %s", ErrUnauthorized, partID, caller)
		}

		emitted, err = s.transferTree(ctx, parts, owns, part, to, false)
		return err
	})
	if err != nil {
		return err
	}

	for _, evt := range emitted {
		s.publisher.Publish(ctx, evt)
	}

	s.logger.Info("Part transferred",
		zap.Uint64("part_id", partID),
		zap.String("to", to),
		zap.Int("moved", len(emitted)),
	)
	return nil
}

// transferTree 深度优先转移以 part 为根的整棵子树。
// cascade 参数沿递归显式下传：顶层调用为 false，此时锁定件被
// 拒绝；子树内的递归调用为 true，锁定检查因级联放行。
func (s *RegistryService) transferTree(ctx context.Context, parts *repository.PartRepository, owns *repository.OwnershipRepository, part *entity.Part, to string, cascade bool) ([]events.Event, error) {
	if part.LockStatus == entity.LockStatusLocked && !cascade {
		return nil, fmt.Errorf("%w: part %d is locked inside an assembly", ErrInvalidState, part.ID)
	}

	own, err := owns.FindByPartID(ctx, part.ID)
	if err != nil {
		return nil, err
	}

	from := own.Owner
	own.Owner = to
	own.Approved = ""
	if err := owns.Update(ctx, own); err != nil {
		return nil, err
	}

	evt := events.New(events.TypePartTransferred)
	evt.PartID = part.ID
	evt.PartNumber = part.PartNumber
	evt.From = from
	evt.To = to
	emitted := []events.Event{evt}

	for _, childID := range part.Children {
		child, err := parts.FindByID(ctx, childID)
		if err != nil {
			return nil, err
		}
		childEvents, err := s.transferTree(ctx, parts, owns, child, to, true)
		if err != nil {
			return nil, err
		}
		emitted = append(emitted, childEvents...)
	}

	return emitted, nil
}
