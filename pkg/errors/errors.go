package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrInsufficientCount 条件扣减失败：剩余人数不足
var ErrInsufficientCount = errors.New("剩余人数不足")

// ErrStageNotDepartable 阶段仍在等待或已完成，不接受出发记录
var ErrStageNotDepartable = errors.New("阶段未处于可出发状态")
