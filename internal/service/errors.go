package service

import "errors"

// ErrValidation 所有参数校验错误的公共父错误，errors.Is(err, ErrValidation) 为真时不访问存储
var ErrValidation = errors.New("参数校验失败")

type validationErr struct {
	msg string
}

func (e *validationErr) Error() string { return e.msg }

func (e *validationErr) Unwrap() error { return ErrValidation }

func validationError(msg string) error {
	return &validationErr{msg: msg}
}
