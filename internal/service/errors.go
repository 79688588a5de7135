package service

import "errors"

// 准入拒绝属于预期内的业务结果，用哨兵错误区分原因，
// 不打错误日志、直接同步返回给调用方。
var (
	ErrVoucherNotFound = errors.New("seckill: voucher not found")
	ErrNotStarted      = errors.New("seckill: sale not started")
	ErrEnded           = errors.New("seckill: sale ended")
	ErrSoldOut         = errors.New("seckill: sold out")
	ErrDuplicateOrder  = errors.New("seckill: duplicate order")
)
