package errors

import "errors"

// ErrOptimisticLock 条件更新未命中：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrTxConflict 事务冲突重试次数耗尽
var ErrTxConflict = errors.New("系统繁忙，请稍后重试")
