package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/events"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/model/entity"
	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MintRequest 铸造零件请求
type MintRequest struct {
	PartNumber   int64  `json:"part_number" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Manufacturer string `json:"manufacturer" binding:"required"`
}

// AssembleRequest 组装请求：将若干自由件组合为一个新组合件
type AssembleRequest struct {
	PartNumber   int64    `json:"part_number" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Manufacturer string   `json:"manufacturer" binding:"required"`
	PartIDs      []uint64 `json:"part_ids" binding:"required"`
}

// AttachRequest 附加请求：向已有组合件追加自由件
type AttachRequest struct {
	PartIDs []uint64 `json:"part_ids" binding:"required"`
}

// PartRelations 零件的组合关系
type PartRelations struct {
	PartID   uint64   `json:"part_id"`
	ParentID uint64   `json:"parent_id"`
	Children []uint64 `json:"children"`
}

// PartService 零件组合引擎：维护零件记录的组合森林，
// 实现铸造、组装、拆解、附加、分离操作。所有操作串行执行，
// 且各自在一个事务内完成，失败时无部分效果。
type PartService struct {
	db        *gorm.DB
	publisher events.Publisher
	logger    *zap.Logger
	mu        *sync.Mutex
}

// NewPartService 创建零件组合引擎
func NewPartService(db *gorm.DB, publisher events.Publisher, logger *zap.Logger, mu *sync.Mutex) *PartService {
	return &PartService{
		db:        db,
		publisher: publisher,
		logger:    logger,
		mu:        mu,
	}
}

// validateAttributes 校验零件目录属性
func validateAttributes(partNumber int64, name, manufacturer string) error {
	if partNumber == 0 {
		return fmt.Errorf("%w: part number must be non-zero", ErrInvalidInput)
	}
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if manufacturer == "" {
		return fmt.Errorf("%w: manufacturer must not be empty", ErrInvalidInput)
	}
	return nil
}

// Mint 铸造新零件：分配下一个ID，状态为自由件，无父无子，
// 并在所有权登记中记录持有账户。
func (s *PartService) Mint(ctx context.Context, owner string, req *MintRequest) (*entity.Part, error) {
	if err := validateAttributes(req.PartNumber, req.Name, req.Manufacturer); err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, fmt.Errorf("%w: owner must not be empty", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	part := &entity.Part{
		PartNumber:   req.PartNumber,
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		LockStatus:   entity.LockStatusFree,
		ParentID:     entity.NoParent,
		Children:     entity.IDList{},
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewPartRepository(tx).Create(ctx, part); err != nil {
			return err
		}
		return repository.NewOwnershipRepository(tx).Create(ctx, &entity.Ownership{
			PartID: part.ID,
			Owner:  owner,
		})
	})
	if err != nil {
		return nil, err
	}

	evt := events.New(events.TypePartCreated)
	evt.Owner = owner
	evt.PartNumber = part.PartNumber
	evt.PartID = part.ID
	s.publisher.Publish(ctx, evt)

	s.logger.Info("Part minted",
		zap.Uint64("part_id", part.ID),
		zap.Int64("part_number", part.PartNumber),
		zap.String("owner", owner),
	)
	return part, nil
}

// Assemble 组装：创建一个新组合件并把给定的自由件锁定为其子件。
// 全部零件必须属于同一账户，新组合件归该账户所有。
func (s *PartService) Assemble(ctx context.Context, caller string, req *AssembleRequest) (*entity.Part, error) {
	if err := validateAttributes(req.PartNumber, req.Name, req.Manufacturer); err != nil {
		return nil, err
	}
	if len(req.PartIDs) < entity.MinAssembleParts || len(req.PartIDs) > entity.MaxChildren {
		return nil, fmt.Errorf("%w: part count must be between %d and %d, got %d",
			ErrInvalidInput, entity.MinAssembleParts, entity.MaxChildren, len(req.PartIDs))
	}
	if hasDuplicates(req.PartIDs) {
		return nil, fmt.Errorf("%w: duplicate part ids", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var composite *entity.Part
	var owner string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		parts := repository.NewPartRepository(tx)
		owns := repository.NewOwnershipRepository(tx)

		members, err := s.loadFreeParts(ctx, parts, req.PartIDs)
		if err != nil {
			return err
		}

		owner, err = s.commonAuthorizedOwner(ctx, owns, caller, req.PartIDs)
		if err != nil {
			return err
		}

		composite = &entity.Part{
			PartNumber:   req.PartNumber,
			Name:         req.Name,
			Manufacturer: req.Manufacturer,
			LockStatus:   entity.LockStatusFree,
			ParentID:     entity.NoParent,
			Children:     append(entity.IDList{}, req.PartIDs...),
		}
		if err := parts.Create(ctx, composite); err != nil {
			return err
		}
		if err := owns.Create(ctx, &entity.Ownership{PartID: composite.ID, Owner: owner}); err != nil {
			return err
		}

		for _, id := range req.PartIDs {
			member := members[id]
			member.LockStatus = entity.LockStatusLocked
			member.ParentID = composite.ID
			if err := parts.Update(ctx, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := events.New(events.TypePartAssembled)
	evt.Owner = owner
	evt.PartNumber = composite.PartNumber
	evt.PartID = composite.ID
	evt.ChildIDs = req.PartIDs
	s.publisher.Publish(ctx, evt)

	s.logger.Info("Parts assembled",
		zap.Uint64("composite_id", composite.ID),
		zap.Uint64s("part_ids", req.PartIDs),
		zap.String("owner", owner),
	)
	return composite, nil
}

// Disassemble 拆解一层：释放全部直接子件为自由件，
// 并销毁组合件本身的零件记录和所有权记录。
func (s *PartService) Disassemble(ctx context.Context, caller string, partID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evt events.Event
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

		if err := s.requireAuthorized(ctx, owns, caller, partID); err != nil {
			return err
		}

		owner, err := owns.OwnerOf(ctx, partID)
		if err != nil {
			return err
		}

		childIDs, err := s.disassemble(ctx, parts, owns, part)
		if err != nil {
			return err
		}

		evt = events.New(events.TypePartDisassembled)
		evt.Owner = owner
		evt.PartNumber = part.PartNumber
		evt.PartID = part.ID
		evt.ChildIDs = childIDs
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, evt)
	s.logger.Info("Part disassembled",
		zap.Uint64("part_id", partID),
		zap.Uint64s("child_ids", evt.ChildIDs),
	)
	return nil
}

// disassemble 在事务内执行拆解：要求自由件且有子件。
// 返回被释放的子件ID。调用方负责前置授权检查。
func (s *PartService) disassemble(ctx context.Context, parts *repository.PartRepository, owns *repository.OwnershipRepository, part *entity.Part) ([]uint64, error) {
	if !part.IsFree() {
		return nil, fmt.Errorf("%w: part %d is locked inside an assembly", ErrInvalidState, part.ID)
	}
	if !part.IsComposite() {
		return nil, fmt.Errorf("%w: part %d has no children", ErrInvalidState, part.ID)
	}

	childIDs := append([]uint64{}, part.Children...)
	for _, childID := range childIDs {
		child, err := parts.FindByID(ctx, childID)
		if err != nil {
			return nil, err
		}
		child.LockStatus = entity.LockStatusFree
		child.ParentID = entity.NoParent
		if err := parts.Update(ctx, child); err != nil {
			return nil, err
		}
	}

	if err := parts.Delete(ctx, part.ID); err != nil {
		return nil, err
	}
	if err := owns.Delete(ctx, part.ID); err != nil {
		return nil, err
	}
	return childIDs, nil
}

// Attach 向已有组合件追加一个或多个自由件作为新子件
func (s *PartService) Attach(ctx context.Context, caller string, assemblyID uint64, req *AttachRequest) error {
	if len(req.PartIDs) == 0 {
		return fmt.Errorf("%w: no parts to attach", ErrInvalidInput)
	}
	if hasDuplicates(req.PartIDs) {
		return fmt.Errorf("%w: duplicate part ids", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var owner string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		parts := repository.NewPartRepository(tx)
		owns := repository.NewOwnershipRepository(tx)

		assembly, err := parts.FindByID(ctx, assemblyID)
		if err != nil {
			if err == repository.ErrNotFound {
				return fmt.Errorf("%w: assembly %d", ErrNotFound, assemblyID)
			}
			return err
		}
		if !assembly.IsFree() {
			return fmt.Errorf("%w: assembly %d is locked inside another assembly", ErrInvalidState, assemblyID)
		}
		if !assembly.IsComposite() {
			return fmt.Errorf("%w: part %d is not an assembly", ErrInvalidState, assemblyID)
		}
		if len(assembly.Children)+len(req.PartIDs) > entity.MaxChildren {
			return fmt.Errorf("%w: assembly %d would exceed %d children",
				ErrInvalidInput, assemblyID, entity.MaxChildren)
		}
		for _, id := range req.PartIDs {
			if assembly.Children.Contains(id) || id == assemblyID {
				return fmt.Errorf("%w: duplicate part ids", ErrInvalidInput)
			}
		}

		members, err := s.loadFreeParts(ctx, parts, req.PartIDs)
		if err != nil {
			return err
		}

		owner, err = s.commonAuthorizedOwner(ctx, owns, caller, req.PartIDs)
		if err != nil {
			return err
		}
		assemblyOwner, err := owns.OwnerOf(ctx, assemblyID)
		if err != nil {
			return err
		}
		if owner != assemblyOwner {
			return fmt.Errorf("%w: parts owned by %s, assembly owned by %s",
				ErrOwnerMismatch, owner, assemblyOwner)
		}
		if err := s.requireAuthorized(ctx, owns, caller, assemblyID); err != nil {
			return err
		}

		for _, id := range req.PartIDs {
			member := members[id]
			member.LockStatus = entity.LockStatusLocked
			member.ParentID = assembly.ID
			if err := parts.Update(ctx, member); err != nil {
				return err
			}
			assembly.Children = append(assembly.Children, id)
		}
		return parts.Update(ctx, assembly)
	})
	if err != nil {
		return err
	}

	for _, id := range req.PartIDs {
		evt := events.New(events.TypePartAttached)
		evt.Owner = owner
		evt.AssemblyID = assemblyID
		evt.PartID = id
		s.publisher.Publish(ctx, evt)
	}

	s.logger.Info("Parts attached",
		zap.Uint64("assembly_id", assemblyID),
		zap.Uint64s("part_ids", req.PartIDs),
	)
	return nil
}

// Detach 从组合件分离一个子件。只剩两个子件时不允许留下
// 单子件组合，会转为对整个组合件的完整拆解。
func (s *PartService) Detach(ctx context.Context, caller string, assemblyID, partID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evt events.Event
	err := s.db.Transaction(func(tx *gorm.DB) error {
		parts := repository.NewPartRepository(tx)
		owns := repository.NewOwnershipRepository(tx)

		assembly, err := parts.FindByID(ctx, assemblyID)
		if err != nil {
			if err == repository.ErrNotFound {
				return fmt.Errorf("%w: assembly %d", ErrNotFound, assemblyID)
			}
			return err
		}
		if !assembly.IsFree() {
			return fmt.Errorf("%w: assembly %d is locked inside another assembly", ErrInvalidState, assemblyID)
		}
		if !assembly.Children.Contains(partID) {
			return fmt.Errorf("%w: part %d is not a child of assembly %d", ErrNotFound, partID, assemblyID)
		}

		if err := s.requireAuthorized(ctx, owns, caller, assemblyID); err != nil {
			return err
		}
		if err := s.requireAuthorized(ctx, owns, caller, partID); err != nil {
			return err
		}

		owner, err := owns.OwnerOf(ctx, assemblyID)
		if err != nil {
			return err
		}

		if len(assembly.Children) == 2 {
			// 分离后只剩一个子件的组合件是不允许的状态，整体拆解
			childIDs, err := s.disassemble(ctx, parts, owns, assembly)
			if err != nil {
				return err
			}
			evt = events.New(events.TypePartDisassembled)
			evt.Owner = owner
			evt.PartNumber = assembly.PartNumber
			evt.PartID = assembly.ID
			evt.ChildIDs = childIDs
			return nil
		}

		// 交换删除，剩余子件顺序允许改变
		for i, id := range assembly.Children {
			if id == partID {
				last := len(assembly.Children) - 1
				assembly.Children[i] = assembly.Children[last]
				assembly.Children = assembly.Children[:last]
				break
			}
		}
		if err := parts.Update(ctx, assembly); err != nil {
			return err
		}

		child, err := parts.FindByID(ctx, partID)
		if err != nil {
			return err
		}
		child.LockStatus = entity.LockStatusFree
		child.ParentID = entity.NoParent
		if err := parts.Update(ctx, child); err != nil {
			return err
		}

		evt = events.New(events.TypePartDetached)
		evt.Owner = owner
		evt.AssemblyID = assemblyID
		evt.PartID = partID
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, evt)
	s.logger.Info("Part detached",
		zap.Uint64("assembly_id", assemblyID),
		zap.Uint64("part_id", partID),
		zap.String("result", evt.Type),
	)
	return nil
}

// GetAttributes 查询零件目录属性和锁定状态
func (s *PartService) GetAttributes(ctx context.Context, partID uint64) (*entity.Part, error) {
	part, err := repository.NewPartRepository(s.db).FindByID(ctx, partID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, fmt.Errorf("%w: part %d", ErrNotFound, partID)
		}
		return nil, err
	}
	return part, nil
}

// GetRelations 查询零件的父件和子件列表
func (s *PartService) GetRelations(ctx context.Context, partID uint64) (*PartRelations, error) {
	part, err := s.GetAttributes(ctx, partID)
	if err != nil {
		return nil, err
	}
	return &PartRelations{
		PartID:   part.ID,
		ParentID: part.ParentID,
		Children: append([]uint64{}, part.Children...),
	}, nil
}

// List 分页查询零件列表
func (s *PartService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Part, int64, error) {
	return repository.NewPartRepository(s.db).List(ctx, page, pageSize, filters)
}

// loadFreeParts 批量加载零件并要求全部为自由件
func (s *PartService) loadFreeParts(ctx context.Context, parts *repository.PartRepository, ids []uint64) (map[uint64]*entity.Part, error) {
	members, err := parts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		member, ok := members[id]
		if !ok {
			return nil, fmt.Errorf("%w: part %d", ErrNotFound, id)
		}
		if !member.IsFree() {
			return nil, fmt.Errorf("%w: part %d is locked inside an assembly", ErrInvalidState, id)
		}
	}
	return members, nil
}

// commonAuthorizedOwner 解析一组零件的共同持有账户并检查
// caller 对每个零件的操作资格。账户不一致返回 ErrOwnerMismatch。
func (s *PartService) commonAuthorizedOwner(ctx context.Context, owns *repository.OwnershipRepository, caller string, ids []uint64) (string, error) {
	owner := ""
	for _, id := range ids {
		own, err := owns.FindByPartID(ctx, id)
		if err != nil {
			if err == repository.ErrNotFound {
				return "", fmt.Errorf("%w: part %d has no ownership record", ErrNotFound, id)
			}
			return "", err
		}
		if owner == "" {
			owner = own.Owner
		} else if own.Owner != owner {
			return "", fmt.Errorf("%w: part %d owned by %s, expected %s",
				ErrOwnerMismatch, id, own.Owner, owner)
		}
	}
	for _, id := range ids {
		if err := s.requireAuthorized(ctx, owns, caller, id); err != nil {
			return "", err
		}
	}
	return owner, nil
}

// requireAuthorized 要求 caller 对零件有操作资格
func (s *PartService) requireAuthorized(ctx context.Context, owns *repository.OwnershipRepository, caller string, partID uint64) error {
	own, err := owns.FindByPartID(ctx, partID)
	if err != nil {
		if err == repository.ErrNotFound {
			return fmt.Errorf("%w: part %d has no ownership record", ErrNotFound, partID)
		}
		return err
	}
	ok, err := authorized(ctx, owns, own, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: part %d, caller %s", ErrUnauthorized, partID, caller)
	}
	return nil
}

func hasDuplicates(ids []uint64) bool {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

var partExportHeaders = []string{
	"ID", "Part Number", "Name", "Manufacturer", "Lock Status", "Parent ID", "Children",
}

// Export 导出全部零件清单到Excel
func (s *PartService) Export(ctx context.Context) (*excelize.File, string, error) {
	parts, err := repository.NewPartRepository(s.db).ListAll(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list parts: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Parts"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range partExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, part := range parts {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), part.ID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), part.PartNumber)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), part.Name)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), part.Manufacturer)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), part.LockStatus)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), part.ParentID)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), fmt.Sprint([]uint64(part.Children)))
	}

	filename := "parts_inventory.xlsx"
	return f, filename, nil
}
