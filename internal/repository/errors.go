package repository

import "errors"

// ErrDuplicateEmail は同一emailの認証主体が既に存在する場合に返される。
var ErrDuplicateEmail = errors.New("repository: duplicate email")
